// Package account manages user profiles: creation on first sign-in,
// onboarding, and the settings forms.
package account

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breezecue/internal/alert"
	"github.com/linnemanlabs/breezecue/internal/docstore"
	"github.com/linnemanlabs/breezecue/internal/playbook"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Service is the business boundary for user profiles.
type Service struct {
	store     docstore.Store
	playbooks *playbook.Service
	logger    log.Logger
	clock     clockwork.Clock

	ensureMu sync.Mutex
}

// NewService creates an account service. clock may be nil.
func NewService(store docstore.Store, playbooks *playbook.Service, logger log.Logger, clock clockwork.Clock) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, playbooks: playbooks, logger: logger, clock: clock}
}

// Path is the document path of uid's profile.
func Path(uid string) string {
	return docstore.Join(Collection, uid)
}

func (s *Service) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}

// Ensure creates the profile for uid if it does not exist yet, with a null
// home region. It reports whether a profile was created.
func (s *Service) Ensure(ctx context.Context, uid, email string) (Profile, bool, error) {
	if strings.TrimSpace(uid) == "" {
		return Profile{}, false, fmt.Errorf("%w: missing uid", ErrInvalidProfile)
	}

	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	if p, ok, err := s.Get(ctx, uid); err != nil || ok {
		return p, false, err
	}

	p := Profile{
		UID:       uid,
		Email:     email,
		CreatedAt: s.clock.Now().UTC(),
		UpdatedAt: s.clock.Now().UTC(),
	}
	data, err := docstore.Encode(p)
	if err != nil {
		return Profile{}, false, err
	}
	if err := s.store.Set(ctx, Path(uid), data); err != nil {
		return Profile{}, false, fmt.Errorf("create profile: %w", err)
	}
	s.logger.Info(ctx, "user profile created", "uid", uid)
	return p.WithDefaults(), true, nil
}

// Get returns uid's profile with defaults applied.
func (s *Service) Get(ctx context.Context, uid string) (Profile, bool, error) {
	d, ok, err := s.store.GetDoc(ctx, Path(uid))
	if err != nil || !ok {
		return Profile{}, false, err
	}
	p, err := decode(d)
	if err != nil {
		return Profile{}, false, err
	}
	return p, true, nil
}

// Watch calls fn with uid's profile now and after every change to it.
func (s *Service) Watch(ctx context.Context, uid string, fn func(Profile, bool)) (func(), error) {
	q := docstore.Collection(Collection).Eq("uid", uid)
	return s.store.OnChange(ctx, q, func(docs []docstore.Doc) {
		if len(docs) == 0 {
			fn(Profile{}, false)
			return
		}
		p, err := decode(docs[0])
		if err != nil {
			s.logger.Error(ctx, err, "decode profile", "uid", uid)
			return
		}
		fn(p, true)
	})
}

// CompleteOnboarding records the home region and/or business type. When a
// business type is given the user's playbooks are replaced with its
// defaults in the same batch as the profile update.
func (s *Service) CompleteOnboarding(ctx context.Context, uid, region, businessType string) (Profile, error) {
	if strings.TrimSpace(region) == "" && strings.TrimSpace(businessType) == "" {
		return Profile{}, fmt.Errorf("%w: region or business type required", ErrInvalidProfile)
	}

	patch := docstore.Data{"updatedAt": s.now()}
	if strings.TrimSpace(region) != "" {
		key, err := homeRegion(region)
		if err != nil {
			return Profile{}, err
		}
		patch["homeRegion"] = key
	}

	b := docstore.NewBatch()
	if strings.TrimSpace(businessType) != "" {
		bt, ok := playbook.CanonicalBusinessType(businessType)
		if !ok {
			return Profile{}, fmt.Errorf("%w: business type %q", ErrInvalidProfile, businessType)
		}
		patch["businessType"] = bt
		if err := s.playbooks.ReplaceBatch(ctx, b, uid, bt); err != nil {
			return Profile{}, err
		}
	}
	b.Update(Path(uid), patch)

	if err := s.store.Commit(ctx, b); err != nil {
		return Profile{}, fmt.Errorf("complete onboarding: %w", err)
	}
	s.logger.Info(ctx, "onboarding updated", "uid", uid, "region", patch["homeRegion"], "business_type", patch["businessType"])
	return s.mustGet(ctx, uid)
}

// UpdateCompany replaces the company block.
func (s *Service) UpdateCompany(ctx context.Context, uid string, c Company) (Profile, error) {
	c = Company{
		CompanyName:    strings.TrimSpace(c.CompanyName),
		CompanyTagline: strings.TrimSpace(c.CompanyTagline),
		CompanyWebsite: strings.TrimSpace(c.CompanyWebsite),
		ContactPhone:   strings.TrimSpace(c.ContactPhone),
		ContactEmail:   strings.TrimSpace(c.ContactEmail),
	}
	if c.ContactEmail != "" && !strings.Contains(c.ContactEmail, "@") {
		return Profile{}, fmt.Errorf("%w: contact email %q", ErrInvalidProfile, c.ContactEmail)
	}
	if err := checkURL("company website", c.CompanyWebsite); err != nil {
		return Profile{}, err
	}
	return s.update(ctx, uid, docstore.Data{
		"companyName":    c.CompanyName,
		"companyTagline": c.CompanyTagline,
		"companyWebsite": c.CompanyWebsite,
		"contactPhone":   c.ContactPhone,
		"contactEmail":   c.ContactEmail,
	})
}

// UpdateBranding replaces the branding block.
func (s *Service) UpdateBranding(ctx context.Context, uid string, b Branding) (Profile, error) {
	for name, c := range map[string]string{"primary color": b.BrandingPrimaryColor, "secondary color": b.BrandingSecondaryColor} {
		if c != "" && !hexColor.MatchString(c) {
			return Profile{}, fmt.Errorf("%w: %s %q is not #RRGGBB", ErrInvalidProfile, name, c)
		}
	}
	if err := checkURL("logo url", b.LogoURL); err != nil {
		return Profile{}, err
	}
	return s.update(ctx, uid, docstore.Data{
		"brandingPrimaryColor":   b.BrandingPrimaryColor,
		"brandingSecondaryColor": b.BrandingSecondaryColor,
		"logoUrl":                strings.TrimSpace(b.LogoURL),
		"brandFont":              strings.TrimSpace(b.BrandFont),
	})
}

// UpdateAdSettings replaces the ad toggles. Nil toggles reset to on.
func (s *Service) UpdateAdSettings(ctx context.Context, uid string, a AdSettings) (Profile, error) {
	val := func(b *bool) bool { return b == nil || *b }
	return s.update(ctx, uid, docstore.Data{
		"adIncludeLogo":    val(a.AdIncludeLogo),
		"adIncludeContact": val(a.AdIncludeContact),
		"adIncludeTagline": val(a.AdIncludeTagline),
	})
}

// ChangeBusinessType replaces the user's playbooks with the defaults for
// businessType and records it on the profile, in one batch. Choosing the
// current type changes nothing; changed reports whether anything was written.
func (s *Service) ChangeBusinessType(ctx context.Context, uid, businessType string) (p Profile, changed bool, err error) {
	bt, ok := playbook.CanonicalBusinessType(businessType)
	if !ok {
		return Profile{}, false, fmt.Errorf("%w: business type %q", ErrInvalidProfile, businessType)
	}
	cur, err := s.mustGet(ctx, uid)
	if err != nil {
		return Profile{}, false, err
	}
	if cur.BusinessType == bt {
		return cur, false, nil
	}

	b := docstore.NewBatch()
	if err := s.playbooks.ReplaceBatch(ctx, b, uid, bt); err != nil {
		return Profile{}, false, err
	}
	b.Update(Path(uid), docstore.Data{"businessType": bt, "updatedAt": s.now()})
	if err := s.store.Commit(ctx, b); err != nil {
		return Profile{}, false, fmt.Errorf("change business type: %w", err)
	}
	p, err = s.mustGet(ctx, uid)
	if err != nil {
		return Profile{}, false, err
	}
	s.logger.Info(ctx, "business type changed", "uid", uid, "from", cur.BusinessType, "to", bt)
	return p, true, nil
}

func (s *Service) update(ctx context.Context, uid string, patch docstore.Data) (Profile, error) {
	patch["updatedAt"] = s.now()
	if err := s.store.Update(ctx, Path(uid), patch); err != nil {
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return s.mustGet(ctx, uid)
}

func (s *Service) mustGet(ctx context.Context, uid string) (Profile, error) {
	p, ok, err := s.Get(ctx, uid)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, fmt.Errorf("profile %s: %w", uid, docstore.ErrNotFound)
	}
	return p, nil
}

func homeRegion(key string) (string, error) {
	r, ok := alert.LookupRegion(key)
	if !ok || r.Unrestricted() {
		return "", fmt.Errorf("%w: home region %q", ErrInvalidProfile, key)
	}
	return r.Key, nil
}

func checkURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %s %q", ErrInvalidProfile, field, raw)
	}
	return nil
}

func decode(d docstore.Doc) (Profile, error) {
	var p Profile
	if err := docstore.Decode(d.Data, &p); err != nil {
		return Profile{}, err
	}
	p.UID = d.ID()
	return p.WithDefaults(), nil
}
