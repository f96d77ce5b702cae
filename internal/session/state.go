package session

import "github.com/trunghafromvietnam/aegis-share/internal/model"

// Status is the request lifecycle of the session.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusCapturing Status = "CAPTURING"
	StatusAnalyzing Status = "ANALYZING"
	StatusErrored   Status = "ERRORED"
)

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Modality    model.Modality
	Artifact    model.Artifact
	Status      Status
	LastResult  *model.RiskResult
	LastError   error
	ExportedURL string
	// Draining is set while a superseded request is still outstanding.
	Draining bool
}

// Ready reports whether the current artifact can be submitted.
func (s Snapshot) Ready() bool {
	return s.Artifact != nil && s.Status == StatusIdle && !s.Draining
}

// ErrorMessage is the user-visible error text, empty when there is none.
func (s Snapshot) ErrorMessage() string {
	return model.UserMessage(s.LastError)
}

// EventKind classifies session events.
type EventKind string

const (
	EventVerdictCommitted EventKind = "verdict_committed"
	EventErrorCommitted   EventKind = "error_committed"
	EventModalityChanged  EventKind = "modality_changed"
	EventArtifactChanged  EventKind = "artifact_changed"
	EventArtifactCleared  EventKind = "artifact_cleared"
	EventStatusChanged    EventKind = "status_changed"
	EventCardExported     EventKind = "card_exported"
)

// Event is delivered to observers in commit order.
type Event struct {
	Kind     EventKind
	Status   Status
	Modality model.Modality
	// Verdict is set for EventVerdictCommitted.
	Verdict *model.RiskResult
	// Err is set for EventErrorCommitted.
	Err error
	// URL is set for EventCardExported.
	URL string
}

// Observer receives session events. Observers may call back into the
// session; events they cause are delivered after the current one.
type Observer func(Event)
