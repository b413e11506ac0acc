// Package backend is the HTTP client for the coastline analysis service.
//
// The service owns all geospatial processing; this package only moves
// requests and GeoJSON payloads across the wire and normalises the
// response shapes the service has shipped over time.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// DefaultBaseURL is where the analysis service listens in development.
const DefaultBaseURL = "http://localhost:5000"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// APIError is a non-success response from the analysis service. Message is
// the service's own error text when the body carried one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// Message returns the backend's error text for err, if it carried one.
func Message(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// Client talks to the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetBaseline fetches the fixed historical coastline.
func (c *Client) GetBaseline(ctx context.Context) (*geojson.FeatureCollection, error) {
	body, err := c.do(ctx, http.MethodGet, "/get-baseline", "", nil)
	if err != nil {
		return nil, err
	}
	fc, err := decodeCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decoding baseline: %w", err)
	}
	if fc == nil {
		return nil, errors.New("decoding baseline: empty response")
	}
	return fc, nil
}

// MapDataRequest is the body of /get-map-data. StartDate is optional.
type MapDataRequest struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date"`
}

// GetMapData runs a change analysis for the given window.
func (c *Client) GetMapData(ctx context.Context, req MapDataRequest) (*MapDataResponse, error) {
	body, err := c.postJSON(ctx, "/get-map-data", req)
	if err != nil {
		return nil, err
	}
	var resp MapDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding map data: %w", err)
	}
	return &resp, nil
}

// GetAnalysis runs the single-date water mask analysis.
func (c *Client) GetAnalysis(ctx context.Context, endDate string) (*AnalysisResponse, error) {
	body, err := c.postJSON(ctx, "/get-analysis", map[string]string{"end_date": endDate})
	if err != nil {
		return nil, err
	}
	var resp AnalysisResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	return &resp, nil
}

// UploadShapefile sends a zipped shapefile and returns the study area the
// service extracted from it.
func (c *Client) UploadShapefile(ctx context.Context, filename string, r io.Reader) (*geojson.FeatureCollection, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading shapefile: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/upload-shapefile", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var resp struct {
		GeoJSON json.RawMessage `json:"geojson"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	fc, err := decodeCollection(resp.GeoJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding study area: %w", err)
	}
	if fc == nil {
		return nil, errors.New("upload response carried no geojson")
	}
	return fc, nil
}

// DownloadChangeData requests the zipped change data for payload and
// returns the archive bytes.
func (c *Client) DownloadChangeData(ctx context.Context, payload any) ([]byte, error) {
	return c.postJSON(ctx, "/download-change-data", map[string]any{"geojson": payload})
}

func (c *Client) postJSON(ctx context.Context, path string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data))
}

// do sends one request and returns the body of a successful response.
// Non-2xx responses and JSON bodies carrying an "error" member become *APIError.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", "method", method, "path", path, "err", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		if msg := errorMessage(data); msg != "" {
			return nil, &APIError{Status: resp.StatusCode, Message: msg}
		}
	}
	return data, nil
}

// errorMessage extracts {"error": "..."} from a response body.
func errorMessage(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error)
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.TrimSpace(contentType), "application/json")
}
