package wizard

import (
	"errors"
	"slices"
	"time"

	"github.com/linnemanlabs/breezecue/internal/adgen"
	"github.com/linnemanlabs/breezecue/internal/alert"
)

// Step is a position in the wizard.
type Step int

const (
	StepPreviewAlert Step = iota
	StepSetTargeting
	StepConfirmAndSave
)

var stepNames = [...]string{"preview_alert", "set_targeting", "confirm_and_save"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[s]
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// State is the lifecycle of a session.
type State string

const (
	StateActive   State = "active"
	StateNotFound State = "not_found"
	StateSaved    State = "saved"
)

// Exit targets handed back to the client.
const (
	ExitDashboard = "/"
	ExitCampaigns = "/campaigns"
)

var (
	// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
	ErrSessionNotFound = errors.New("wizard session not found")
	// ErrInvalidStep is returned for an operation the current step does not allow.
	ErrInvalidStep = errors.New("operation not allowed at this step")
	// ErrInactive is returned for edits to a not-found or saved session.
	ErrInactive = errors.New("wizard session is not active")
	// ErrNoContent is returned for content edits before any generation.
	ErrNoContent = errors.New("no generated content yet")
	// ErrInvalidInput wraps rejected edits.
	ErrInvalidInput = errors.New("invalid wizard input")
	// ErrSuperseded is returned by a Generate whose result lost to a later call.
	ErrSuperseded = errors.New("generation superseded by a newer request")
)

// Content is the editable ad content.
type Content struct {
	HeadlineIndex int      `json:"headlineIndex"`
	Headlines     []string `json:"headlines"`
	Headline      string   `json:"headline"`
	Body          string   `json:"body"`
	ImageURL      string   `json:"imageUrl"`
}

func (c Content) clone() Content {
	c.Headlines = slices.Clone(c.Headlines)
	return c
}

// ContentPatch edits content. Nil fields are left alone. Selecting a
// headline index without an explicit headline switches to that candidate.
type ContentPatch struct {
	HeadlineIndex *int    `json:"headlineIndex,omitempty"`
	Headline      *string `json:"headline,omitempty"`
	Body          *string `json:"body,omitempty"`
	ImageURL      *string `json:"imageUrl,omitempty"`
}

// Session is a client-facing view of one wizard run.
type Session struct {
	ID         string       `json:"id"`
	UID        string       `json:"-"`
	AlertID    string       `json:"alertId"`
	State      State        `json:"state"`
	Step       Step         `json:"step"`
	Alert      *alert.Alert `json:"alert,omitempty"`
	Content    *Content     `json:"content,omitempty"`
	Generating bool         `json:"generating"`
	GenError   string       `json:"generationError,omitempty"`
	Radius     int          `json:"radius"`
	ExitTo     string       `json:"exitTo,omitempty"`
	CampaignID string       `json:"campaignId,omitempty"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

type session struct {
	Session
	generated *adgen.Result
	issued    uint64
	saving    bool
}

func (s *session) view() Session {
	v := s.Session
	if v.Alert != nil {
		a := *v.Alert
		v.Alert = &a
	}
	if v.Content != nil {
		c := v.Content.clone()
		v.Content = &c
	}
	return v
}
