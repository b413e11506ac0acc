package service

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for dates (ISO YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Default bounds and values for the date pickers.
const (
	DefaultMinDate = "2017-01-01"
	DefaultEndDate = "2023-06-30"
)

// Mode selects which request shape the selector produces.
type Mode string

const (
	// ModeRange asks for a start and end date and uses /get-map-data.
	ModeRange Mode = "range"
	// ModeEndDate asks for an end date only and uses /get-map-data.
	ModeEndDate Mode = "end-date"
	// ModeSnapshot asks for an end date only and uses /get-analysis.
	ModeSnapshot Mode = "snapshot"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRange, ModeEndDate, ModeSnapshot:
		return m, nil
	case "":
		return ModeRange, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want range, end-date or snapshot)", s)
	}
}

// NeedsStart reports whether the mode requires a start date.
func (m Mode) NeedsStart() bool {
	return m == ModeRange
}

// AnalysisRequest is a validated analysis window. Start is zero in the
// single-date modes.
type AnalysisRequest struct {
	Mode  Mode
	Start time.Time
	End   time.Time
}

// HasStart reports whether the request carries a start date.
func (r AnalysisRequest) HasStart() bool {
	return !r.Start.IsZero()
}

// StartDate returns the start date formatted for the wire, or "".
func (r AnalysisRequest) StartDate() string {
	if r.Start.IsZero() {
		return ""
	}
	return r.Start.Format(DateLayout)
}

// EndDate returns the end date formatted for the wire.
func (r AnalysisRequest) EndDate() string {
	return r.End.Format(DateLayout)
}

// ValidationError is a client-side rejection of user input. It never
// involves a network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DateRangeSelector validates the comparison window entered by the user.
type DateRangeSelector struct {
	Mode    Mode
	MinDate time.Time
	Now     func() time.Time
}

// NewDateRangeSelector creates a selector for mode with the given lower bound.
func NewDateRangeSelector(mode Mode, minDate string) (*DateRangeSelector, error) {
	if minDate == "" {
		minDate = DefaultMinDate
	}
	lower, err := time.Parse(DateLayout, minDate)
	if err != nil {
		return nil, fmt.Errorf("invalid min date %q: %w", minDate, err)
	}
	return &DateRangeSelector{Mode: mode, MinDate: lower, Now: time.Now}, nil
}

// Today returns the upper bound for any date, truncated to the day.
func (s *DateRangeSelector) Today() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Defaults returns the values the pickers start with: the end date is
// 2023-06-30 (clamped to today) and the start date one year earlier.
func (s *DateRangeSelector) Defaults() (start, end string) {
	e, _ := time.Parse(DateLayout, DefaultEndDate)
	if today := s.Today(); e.After(today) {
		e = today
	}
	if !s.Mode.NeedsStart() {
		return "", e.Format(DateLayout)
	}
	st := e.AddDate(-1, 0, 0)
	if st.Before(s.MinDate) {
		st = s.MinDate
	}
	return st.Format(DateLayout), e.Format(DateLayout)
}

// Validate checks the raw picker values and returns the request to send.
// The start value is ignored in single-date modes.
func (s *DateRangeSelector) Validate(start, end string) (AnalysisRequest, error) {
	req := AnalysisRequest{Mode: s.Mode}

	end = strings.TrimSpace(end)
	start = strings.TrimSpace(start)

	if s.Mode.NeedsStart() && start == "" && end == "" {
		return req, &ValidationError{Field: "dates", Message: "Please select both a start and an end date"}
	}
	if s.Mode.NeedsStart() && start == "" {
		return req, &ValidationError{Field: "startDate", Message: "Please select a start date"}
	}
	if end == "" {
		return req, &ValidationError{Field: "endDate", Message: "Please select an end date"}
	}

	e, err := s.parse("endDate", "end", end)
	if err != nil {
		return req, err
	}
	req.End = e

	if s.Mode.NeedsStart() {
		st, err := s.parse("startDate", "start", start)
		if err != nil {
			return req, err
		}
		if st.After(e) {
			return req, &ValidationError{Field: "startDate", Message: "Start date must be on or before the end date"}
		}
		req.Start = st
	}
	return req, nil
}

func (s *DateRangeSelector) parse(field, label, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("Invalid %s date %q, expected YYYY-MM-DD", label, value),
		}
	}
	if t.Before(s.MinDate) || t.After(s.Today()) {
		return time.Time{}, &ValidationError{
			Field: field,
			Message: fmt.Sprintf("The %s date must be between %s and %s",
				label, s.MinDate.Format(DateLayout), s.Today().Format(DateLayout)),
		}
	}
	return t, nil
}

// FallbackMessage is the generic analysis error shown when the backend gave
// no message of its own.
func (s *DateRangeSelector) FallbackMessage() string {
	return fmt.Sprintf("Analysis failed. Try dates between %s and today", s.MinDate.Format(DateLayout))
}
