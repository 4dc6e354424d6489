package adgen

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names accepted on the wire.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Output limits, in characters.
const (
	HeadlineCount   = 3
	MaxHeadlineLen  = 90
	MaxBodyLen      = 180
	GenericFailure  = "Failed to generate ad content."
	defaultBusiness = "Our company"
)

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// AlertDetails is the slice of an alert the generator needs. Older clients
// nest the fields under "properties"; both shapes are accepted.
type AlertDetails struct {
	Event       string        `json:"event,omitempty"`
	AreaDesc    string        `json:"areaDesc,omitempty"`
	Severity    string        `json:"severity,omitempty"`
	Description string        `json:"description,omitempty"`
	Properties  *AlertDetails `json:"properties,omitempty"`
}

// UserSettings is the business profile used in prompts.
type UserSettings struct {
	CompanyName    string `json:"companyName,omitempty"`
	BusinessType   string `json:"businessType,omitempty"`
	ContactPhone   string `json:"contactPhone,omitempty"`
	CompanyWebsite string `json:"companyWebsite,omitempty"`
}

// Request is a single ad generation call.
type Request struct {
	AlertDetails AlertDetails `json:"alertDetails"`
	UserSettings UserSettings `json:"userSettings"`
	Provider     string       `json:"provider,omitempty"`
}

// Result is the generated ad content.
type Result struct {
	Headlines []string `json:"headlines"`
	Body      string   `json:"body"`
	ImageURL  string   `json:"imageUrl"`
}

// GenerationError reports that the provider failed and placeholder content
// was returned instead.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return GenericFailure
	}
	return GenericFailure + " " + e.Cause.Error()
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// Normalize validates r and returns a copy with defaults applied.
func (r *Request) Normalize() (Request, error) {
	out := Request{
		AlertDetails: r.AlertDetails.flatten(),
		UserSettings: r.UserSettings,
		Provider:     strings.ToLower(strings.TrimSpace(r.Provider)),
	}

	switch out.Provider {
	case "":
		out.Provider = ProviderGemini
	case ProviderGemini, ProviderOpenAI, ProviderClaude:
	default:
		return Request{}, fmt.Errorf("%w: provider %q is not one of gemini, openai, claude", ErrInvalidRequest, r.Provider)
	}

	ad := &out.AlertDetails
	ad.Event = orDefault(ad.Event, "Weather Event")
	ad.AreaDesc = orDefault(ad.AreaDesc, "the local area")
	ad.Severity = orDefault(ad.Severity, "Unknown")
	ad.Description = strings.TrimSpace(ad.Description)

	us := &out.UserSettings
	us.CompanyName = strings.TrimSpace(us.CompanyName)
	us.BusinessType = orDefault(us.BusinessType, "local business")
	us.ContactPhone = strings.TrimSpace(us.ContactPhone)
	us.CompanyWebsite = strings.TrimSpace(us.CompanyWebsite)

	return out, nil
}

func (a AlertDetails) flatten() AlertDetails {
	out := AlertDetails{
		Event:       a.Event,
		AreaDesc:    a.AreaDesc,
		Severity:    a.Severity,
		Description: a.Description,
	}
	if p := a.Properties; p != nil {
		out.Event = firstNonEmpty(out.Event, p.Event)
		out.AreaDesc = firstNonEmpty(out.AreaDesc, p.AreaDesc)
		out.Severity = firstNonEmpty(out.Severity, p.Severity)
		out.Description = firstNonEmpty(out.Description, p.Description)
	}
	return out
}

// BusinessName is the company name used in copy, with a generic fallback.
func (u UserSettings) BusinessName() string {
	return orDefault(u.CompanyName, defaultBusiness)
}

// ContactString is the call to action appended to body copy.
func (u UserSettings) ContactString() string {
	switch {
	case u.ContactPhone != "":
		return "Call " + u.ContactPhone
	case u.CompanyWebsite != "":
		return "Visit " + u.CompanyWebsite
	default:
		return "Contact us for details."
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
