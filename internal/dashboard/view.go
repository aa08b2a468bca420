package dashboard

import "FinVision/internal/model"

// Status is the resolution state of the selected asset.
type Status string

const (
	StatusUnresolved Status = "UNRESOLVED"
	StatusFetching   Status = "FETCHING"
	StatusResolved   Status = "RESOLVED"
	StatusFallback   Status = "FALLBACK"
)

// MessageKind separates soft advisories from hard, user-visible errors.
type MessageKind string

const (
	MessageAdvisory MessageKind = "advisory"
	MessageError    MessageKind = "error"
)

const (
	AdvisoryCredentialMissing = "API Key is missing. Using offline fallback data."
	ErrorChartAnalysis        = "Failed to analyze the chart. Please ensure the image is clear and try again. API Key might be invalid."
)

// View is everything a presentation layer needs to draw the dashboard.
type View struct {
	Selection   model.AssetID        `json:"selection"`
	Snapshot    *model.AssetSnapshot `json:"snapshot,omitempty"`
	Status      Status               `json:"status"`
	Loading     bool                 `json:"loading"`
	Analyzing   bool                 `json:"analyzing"`
	Fallback    bool                 `json:"fallback"`
	Message     string               `json:"message,omitempty"`
	MessageKind MessageKind          `json:"messageKind,omitempty"`
}

// state is the input of render, captured under the orchestrator lock.
type state struct {
	selection model.AssetID
	cached    *model.AssetSnapshot
	custom    *model.AssetSnapshot
	fallback  *model.AssetSnapshot
	fetching  bool
	failed    bool
	analyzing bool
	message   string
	kind      MessageKind
}

// render maps a selection and the data known for it onto a View.
// A standard asset that is neither cached nor being fetched shows its
// fallback snapshot.
func render(s state) View {
	v := View{
		Selection: s.selection,
		Analyzing: s.analyzing,
		Message:   s.message,
	}
	if s.message != "" {
		v.MessageKind = s.kind
	}

	if s.selection.IsCustom() {
		v.Snapshot = s.custom
		v.Loading = s.analyzing
		switch {
		case s.analyzing:
			v.Status = StatusFetching
		case s.custom != nil:
			v.Status = StatusResolved
		default:
			v.Status = StatusUnresolved
		}
		return v
	}

	switch {
	case s.cached != nil:
		v.Snapshot = s.cached
		v.Status = StatusResolved
	case s.fetching:
		v.Loading = true
		v.Status = StatusFetching
	case s.failed:
		v.Snapshot = s.fallback
		v.Fallback = s.fallback != nil
		v.Status = StatusFallback
	default:
		v.Snapshot = s.fallback
		v.Fallback = s.fallback != nil
		v.Status = StatusUnresolved
	}
	return v
}
