package campaign

import (
	"errors"
	"time"
)

// Collection holds every campaign document; ownership is the uid field.
const Collection = "campaigns"

// Radius bounds in miles.
const (
	MinRadius     = 1
	MaxRadius     = 50
	DefaultRadius = 10
)

// Status of a campaign.
type Status string

const (
	StatusDraft    Status = "Draft"
	StatusLaunched Status = "Launched"
)

var (
	// ErrInvalidCampaign wraps every validation failure raised before a write.
	ErrInvalidCampaign = errors.New("invalid campaign")
	// ErrForbidden is returned when a caller acts on another user's campaign.
	ErrForbidden = errors.New("campaign belongs to another user")
)

// Copy is the selected ad text.
type Copy struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

// Campaign is a saved ad campaign.
type Campaign struct {
	ID         string    `json:"id"`
	UID        string    `json:"uid"`
	AlertID    string    `json:"alertId"`
	AlertEvent string    `json:"alertEvent"`
	Copy       Copy      `json:"copy"`
	Headlines  []string  `json:"headlines"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Radius     int       `json:"radius"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	LaunchedAt time.Time `json:"launchedAt,omitzero"`
}

// ClampRadius limits r to MinRadius..MaxRadius. Zero means DefaultRadius.
func ClampRadius(r int) int {
	switch {
	case r == 0:
		return DefaultRadius
	case r < MinRadius:
		return MinRadius
	case r > MaxRadius:
		return MaxRadius
	default:
		return r
	}
}
