package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/modasir321/coastline-analysis/internal/render"
	"github.com/modasir321/coastline-analysis/internal/server"
	"github.com/modasir321/coastline-analysis/internal/service"
)

// Options defines all CLI flags and env vars for the viewer.
// Flags: --host, --port, --backend, --mode, --min-date, --timeout, --tolerance,
// --download-dir, --log-level, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_BACKEND, SERVICE_MODE, ...
type Options struct {
	Host        string `doc:"Host to bind to" default:"0.0.0.0"`
	Port        int    `doc:"Port to listen on" short:"p" default:"8086"`
	Backend     string `doc:"Base URL of the analysis service" default:"http://localhost:5000"`
	Mode        string `doc:"Date selection mode: range, end-date or snapshot" default:"range"`
	MinDate     string `doc:"Earliest selectable date" default:"2017-01-01"`
	Timeout     string `doc:"Timeout for one backend call" default:"2m"`
	Tolerance   string `doc:"Simplification tolerance in degrees (0 disables)" default:"0.001"`
	DownloadDir string `doc:"Directory exported archives are saved to" default:"."`
	LogLevel    string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat   string `doc:"Log format: text or json" default:"text"`
}

func newLogger(opts *Options) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(opts.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

func newServer(opts *Options, logger *slog.Logger) (*server.Server, error) {
	timeout, err := time.ParseDuration(opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", opts.Timeout, err)
	}
	tolerance, err := strconv.ParseFloat(opts.Tolerance, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid tolerance %q: %w", opts.Tolerance, err)
	}
	return server.New(server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		BackendURL: opts.Backend,
		Mode:       opts.Mode,
		MinDate:    opts.MinDate,
		Timeout:    timeout,
		Tolerance:  tolerance,
		Logger:     logger,
	})
}

// mustServer builds the server or exits.
func mustServer(opts *Options) (*server.Server, *slog.Logger) {
	logger := newLogger(opts)
	slog.SetDefault(logger)
	srv, err := newServer(opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return srv, logger
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv, logger := mustServer(opts)
		addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
		httpServer := &http.Server{Addr: addr, Handler: srv}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("coastline viewer starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Backend: %s\n", opts.Backend)
			fmt.Printf("  Mode:    %s\n", opts.Mode)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			srv.Start(context.Background())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "err", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
			srv.Close()
		})
	})

	cli.Root().Use = "coastline"
	cli.Root().Short = "Coastal erosion and accretion viewer"
	cli.Root().Version = "0.1.0"

	cli.Root().AddCommand(specCommand())
	cli.Root().AddCommand(analyzeCommand())
	cli.Root().AddCommand(baselineCommand())
	cli.Root().AddCommand(uploadCommand())
	cli.Root().AddCommand(inspectCommand())
	cli.Root().AddCommand(exportCommand())

	cli.Run()
}

// specCommand exports the OpenAPI spec.
func specCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _ := mustServer(opts)
			useYAML, _ := cmd.Flags().GetBool("yaml")
			printOutput(srv.OpenAPI(), useYAML)
		}),
	}
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	return cmd
}

// analyzeCommand runs one analysis and prints the change summary.
func analyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze coastal change for a date window and print a summary",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _ := mustServer(opts)
			svc := srv.Services()
			start, end := dateFlags(cmd, svc.Controller.Selector())

			ctx := cmd.Context()
			_ = svc.Controller.LoadBaseline(ctx)
			if err := svc.Controller.RequestAnalysis(ctx, start, end); err != nil {
				fail(svc.Store, err)
			}

			useYAML, _ := cmd.Flags().GetBool("yaml")
			printOutput(render.Summarize(svc.Store.Snapshot().Data), useYAML)
		}),
	}
	addDateFlags(cmd)
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	return cmd
}

// baselineCommand fetches the reference coastline.
func baselineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "baseline",
		Short: "Fetch the baseline coastline and print its feature count",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _ := mustServer(opts)
			svc := srv.Services()
			if err := svc.Controller.LoadBaseline(cmd.Context()); err != nil {
				fail(svc.Store, err)
			}
			fmt.Printf("Baseline: %d features\n", len(svc.Store.Snapshot().Data.Baseline.Features))
		}),
	}
}

// uploadCommand uploads a zipped shapefile as the study area.
func uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <shapefile.zip>",
		Short: "Upload a zipped shapefile as the study area",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _ := mustServer(opts)
			svc := srv.Services()
			info, err := svc.Uploads.UploadFile(cmd.Context(), args[0])
			if err != nil {
				fail(svc.Store, err)
			}
			area := svc.Store.Snapshot().Data.StudyArea
			fmt.Printf("Uploaded %s (%s, %d shapes): study area has %d features\n",
				info.Name, info.Size, info.Shapes, len(area.Features))
		}),
	}
}

// inspectCommand reads a zipped shapefile locally.
func inspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <shapefile.zip>",
		Short: "Show shape count, fields and bounding box of a zipped shapefile",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			info, err := service.Inspect(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			useYAML, _ := cmd.Flags().GetBool("yaml")
			printOutput(info, useYAML)
		},
	}
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	return cmd
}

// exportCommand analyzes a window and saves the change archive.
func exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Analyze a date window and download the change data archive",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _ := mustServer(opts)
			svc := srv.Services()
			start, end := dateFlags(cmd, svc.Controller.Selector())

			ctx := cmd.Context()
			_ = svc.Controller.LoadBaseline(ctx)
			if err := svc.Controller.RequestAnalysis(ctx, start, end); err != nil {
				fail(svc.Store, err)
			}

			boundaries := svc.Store.Snapshot().Data.WaterBoundaries()
			location, err := svc.Controller.RequestExport(ctx, boundaries, service.DirSaver{Dir: opts.DownloadDir})
			if err != nil {
				fail(svc.Store, err)
			}
			fmt.Printf("Saved %s\n", location)
		}),
	}
	addDateFlags(cmd)
	return cmd
}

func addDateFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "Start date (YYYY-MM-DD, range mode only)")
	cmd.Flags().String("end", "", "End date (YYYY-MM-DD)")
}

// dateFlags returns the requested window, falling back to the selector defaults.
func dateFlags(cmd *cobra.Command, sel *service.DateRangeSelector) (string, string) {
	defStart, defEnd := sel.Defaults()
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	if start == "" && sel.Mode.NeedsStart() {
		start = defStart
	}
	if end == "" {
		end = defEnd
	}
	return start, end
}

// fail prints the user-facing error from the store, or err, and exits.
func fail(store *service.Store, err error) {
	msg := store.Snapshot().UI.Error
	if msg == "" {
		msg = err.Error()
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	os.Exit(1)
}

func printOutput(v any, useYAML bool) {
	var output []byte
	var err error
	if useYAML {
		output, err = yaml.Marshal(v)
	} else {
		output, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
}
