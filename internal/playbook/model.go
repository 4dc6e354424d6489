package playbook

import (
	"errors"
	"strings"
	"time"
)

// Collection paths.
const (
	DefaultsCollection = "playbooks_default"
	userCollection     = "playbooks"
)

// ErrInvalidBusinessType is returned for business types outside the fixed set.
var ErrInvalidBusinessType = errors.New("invalid business type")

// ErrInvalidPlaybook is returned for malformed playbook edits.
var ErrInvalidPlaybook = errors.New("invalid playbook")

var businessTypes = []string{
	"Roofing",
	"HVAC",
	"Landscaping",
	"Snow Removal",
	"Pest Control",
	"Retail Apparel",
	"Events",
	"Insurance",
	"Logistics",
}

// BusinessTypes returns the supported business types in display order.
func BusinessTypes() []string {
	return append([]string{}, businessTypes...)
}

// CanonicalBusinessType matches bt case-insensitively against the supported
// set and returns the canonical spelling.
func CanonicalBusinessType(bt string) (string, bool) {
	bt = strings.TrimSpace(bt)
	for _, t := range businessTypes {
		if strings.EqualFold(t, bt) {
			return t, true
		}
	}
	return "", false
}

// Playbook is a reusable campaign template.
type Playbook struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Trigger      string    `json:"trigger"`
	Copy         string    `json:"copy"`
	BusinessType string    `json:"businessType"`
	IsDefault    bool      `json:"isDefault"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Patch is a partial edit of a user playbook. Nil fields are left unchanged.
type Patch struct {
	Name    *string `json:"name,omitempty"`
	Trigger *string `json:"trigger,omitempty"`
	Copy    *string `json:"copy,omitempty"`
}

func (p Patch) empty() bool {
	return p.Name == nil && p.Trigger == nil && p.Copy == nil
}
