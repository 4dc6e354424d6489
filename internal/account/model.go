package account

import (
	"errors"
	"time"
)

// Collection holds user profiles keyed by uid.
const Collection = "users"

// Branding and ad-setting defaults applied when a profile leaves them unset.
const (
	DefaultPrimaryColor   = "#1976d2"
	DefaultSecondaryColor = "#dc004e"
	DefaultBrandFont      = "Roboto"
)

// ErrInvalidProfile wraps every profile validation failure.
var ErrInvalidProfile = errors.New("invalid profile")

// Profile is a user's account document.
type Profile struct {
	UID          string  `json:"uid"`
	Email        string  `json:"email"`
	HomeRegion   *string `json:"homeRegion"`
	BusinessType string  `json:"businessType,omitempty"`

	Company
	Branding
	AdSettings

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Company is the business contact block.
type Company struct {
	CompanyName    string `json:"companyName,omitempty"`
	CompanyTagline string `json:"companyTagline,omitempty"`
	CompanyWebsite string `json:"companyWebsite,omitempty"`
	ContactPhone   string `json:"contactPhone,omitempty"`
	ContactEmail   string `json:"contactEmail,omitempty"`
}

// Branding controls ad appearance.
type Branding struct {
	BrandingPrimaryColor   string `json:"brandingPrimaryColor,omitempty"`
	BrandingSecondaryColor string `json:"brandingSecondaryColor,omitempty"`
	LogoURL                string `json:"logoUrl,omitempty"`
	BrandFont              string `json:"brandFont,omitempty"`
}

// AdSettings toggles optional ad elements. Nil means the default (on).
type AdSettings struct {
	AdIncludeLogo    *bool `json:"adIncludeLogo,omitempty"`
	AdIncludeContact *bool `json:"adIncludeContact,omitempty"`
	AdIncludeTagline *bool `json:"adIncludeTagline,omitempty"`
}

// WithDefaults returns a copy of p with unset branding and ad settings
// filled in, and the contact email falling back to the sign-in email.
func (p Profile) WithDefaults() Profile {
	if p.BrandingPrimaryColor == "" {
		p.BrandingPrimaryColor = DefaultPrimaryColor
	}
	if p.BrandingSecondaryColor == "" {
		p.BrandingSecondaryColor = DefaultSecondaryColor
	}
	if p.BrandFont == "" {
		p.BrandFont = DefaultBrandFont
	}
	if p.ContactEmail == "" {
		p.ContactEmail = p.Email
	}
	on := func(b *bool) *bool {
		if b != nil {
			return b
		}
		v := true
		return &v
	}
	p.AdIncludeLogo = on(p.AdIncludeLogo)
	p.AdIncludeContact = on(p.AdIncludeContact)
	p.AdIncludeTagline = on(p.AdIncludeTagline)
	return p
}

// OnboardingStep returns 1 while the home region is missing, 2 while the
// business type is missing and 0 once onboarding is complete.
func OnboardingStep(p Profile) int {
	switch {
	case p.HomeRegion == nil || *p.HomeRegion == "":
		return 1
	case p.BusinessType == "":
		return 2
	default:
		return 0
	}
}
