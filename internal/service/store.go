package service

import (
	"sync"

	"github.com/paulmach/orb/geojson"
)

// Store is the single owner of MapData and UIState. Mutations are
// synchronous, never fail, and publish one Event when they change something.
type Store struct {
	mu   sync.RWMutex
	data MapData
	ui   UIState
	bus  *EventBus
}

// NewStore creates an empty store with default toggles.
func NewStore() *Store {
	return &Store{
		ui:  DefaultUIState(),
		bus: NewEventBus(),
	}
}

// Snapshot returns a copy of the current state. Collections are shared and
// must be treated as read-only.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Data: s.data, UI: s.ui}
}

// Subscribe returns a channel of state change events.
func (s *Store) Subscribe() chan Event {
	return s.bus.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Store) Unsubscribe(ch chan Event) {
	s.bus.Unsubscribe(ch)
}

// SetLoading sets the loading flag. Turning loading on clears any error.
func (s *Store) SetLoading(loading bool) {
	s.update("loading", "", func() bool {
		if s.ui.Loading == loading && (!loading || s.ui.Error == "") {
			return false
		}
		s.ui.Loading = loading
		if loading {
			s.ui.Error = ""
		}
		return true
	})
}

// SetError sets the user-facing error. A non-empty error clears loading;
// an empty string clears the error only.
func (s *Store) SetError(msg string) {
	s.update("error", "", func() bool {
		if s.ui.Error == msg && (msg == "" || !s.ui.Loading) {
			return false
		}
		s.ui.Error = msg
		if msg != "" {
			s.ui.Loading = false
		}
		return true
	})
}

// ReportError sets an error raised outside the analysis request, such as a
// failed export or upload. While an analysis is loading the message is not
// stored, so the pending request keeps its loading state; the analysis
// outcome replaces the error either way. It reports whether msg was stored.
func (s *Store) ReportError(msg string) bool {
	stored := false
	s.update("error", "", func() bool {
		if s.ui.Loading || s.ui.Error == msg {
			return false
		}
		s.ui.Error = msg
		stored = true
		return true
	})
	return stored
}

// SetBaseline stores the reference coastline.
func (s *Store) SetBaseline(fc *geojson.FeatureCollection) {
	s.update("baseline", "", func() bool {
		s.data.Baseline = fc
		return true
	})
}

// SetStudyArea stores the study-area boundary, usually from an upload.
func (s *Store) SetStudyArea(fc *geojson.FeatureCollection) {
	s.update("study-area", "", func() bool {
		s.data.StudyArea = fc
		return true
	})
}

// MergeAnalysisResult applies a successful analysis response. The
// comparison-derived fields are replaced wholesale; baseline and study area
// are only replaced when the result carries them. Error and loading are cleared.
func (s *Store) MergeAnalysisResult(result MapData) {
	s.mergeAnalysisResult(result, "")
}

func (s *Store) mergeAnalysisResult(result MapData, requestID string) {
	s.update("analysis", requestID, func() bool {
		s.data.Comparison = result.Comparison
		s.data.Erosion = result.Erosion
		s.data.Accretion = result.Accretion
		s.data.Raster = result.Raster
		if result.Baseline != nil {
			s.data.Baseline = result.Baseline
		}
		if result.StudyArea != nil {
			s.data.StudyArea = result.StudyArea
		}
		s.ui.Error = ""
		s.ui.Loading = false
		return true
	})
}

// SetBaseLayer switches between the change and satellite views.
func (s *Store) SetBaseLayer(b BaseLayer) {
	s.update("view", "", func() bool {
		if s.ui.BaseLayer == b {
			return false
		}
		s.ui.BaseLayer = b
		return true
	})
}

// SetPeriod selects which coastline periods are visible.
func (s *Store) SetPeriod(p Period) {
	s.update("view", "", func() bool {
		if s.ui.Period == p {
			return false
		}
		s.ui.Period = p
		return true
	})
}

// update runs fn under the write lock and publishes after unlocking.
func (s *Store) update(action, id string, fn func() bool) {
	s.mu.Lock()
	changed := fn()
	s.mu.Unlock()

	if changed {
		s.bus.Publish(Event{Resource: "map", Action: action, ID: id})
	}
}
