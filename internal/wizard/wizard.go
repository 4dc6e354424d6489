// Package wizard drives the three-step campaign builder: preview an alert
// and generate copy, set targeting, then confirm and save a draft.
//
// Sessions live in memory and expire after an idle TTL. Generation calls run
// without holding the session lock; when several overlap, only the result of
// the most recently issued call is applied.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/breezecue/internal/adgen"
	"github.com/linnemanlabs/breezecue/internal/alert"
	"github.com/linnemanlabs/breezecue/internal/campaign"
	"github.com/linnemanlabs/breezecue/internal/docstore"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 30 * time.Minute

// Alerts resolves alert ids against the currently held list.
type Alerts interface {
	Find(id string) (alert.Alert, bool)
}

// Generator produces ad content.
type Generator interface {
	Generate(ctx context.Context, req *adgen.Request) (*adgen.Result, error)
}

// Campaigns persists saved drafts.
type Campaigns interface {
	Save(ctx context.Context, c campaign.Campaign) (*campaign.Campaign, error)
}

// Hooks are optional callbacks for observability.
type Hooks struct {
	OnStart      func(state State)
	OnSuperseded func()
	OnSave       func(ok bool)
	OnExpire     func(n int)
}

// Manager owns every wizard session.
type Manager struct {
	alerts    Alerts
	gen       Generator
	campaigns Campaigns
	logger    log.Logger
	clock     clockwork.Clock
	ttl       time.Duration
	hooks     Hooks

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the idle expiry. Non-positive values keep the default.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithHooks sets observability hooks.
func WithHooks(h Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// NewManager creates a session manager. It panics if a dependency is nil.
func NewManager(alerts Alerts, gen Generator, campaigns Campaigns, logger log.Logger, opts ...Option) *Manager {
	switch {
	case alerts == nil:
		panic(xerrors.New("wizard: alert source is required"))
	case gen == nil:
		panic(xerrors.New("wizard: generator is required"))
	case campaigns == nil:
		panic(xerrors.New("wizard: campaign store is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	m := &Manager{
		alerts:    alerts,
		gen:       gen,
		campaigns: campaigns,
		logger:    logger,
		clock:     clockwork.NewRealClock(),
		ttl:       DefaultTTL,
		sessions:  make(map[string]*session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start opens a session for alertID. An alert missing from the held list
// yields a session in StateNotFound pointing back to the dashboard.
func (m *Manager) Start(ctx context.Context, uid, alertID string) Session {
	s := &session{Session: Session{
		ID:      docstore.NewID(),
		UID:     uid,
		AlertID: alertID,
		State:   StateActive,
		Step:    StepPreviewAlert,
		Radius:  campaign.DefaultRadius,
	}}
	if a, ok := m.alerts.Find(alertID); ok {
		s.Alert = &a
	} else {
		s.State = StateNotFound
		s.ExitTo = ExitDashboard
		m.logger.Info(ctx, "wizard alert not found", "alert_id", alertID, "uid", uid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.clock.Now()
	m.sessions[s.ID] = s
	if m.hooks.OnStart != nil {
		m.hooks.OnStart(s.State)
	}
	return s.view()
}

// Get returns a session owned by uid.
func (m *Manager) Get(uid, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(uid, id)
	if err != nil {
		return Session{}, err
	}
	return s.view(), nil
}

// Next advances one step. It is rejected on the last step.
func (m *Manager) Next(uid, id string) (Session, error) {
	return m.mutate(uid, id, func(s *session) error {
		if s.Step >= StepConfirmAndSave {
			return fmt.Errorf("%w: already on the last step", ErrInvalidStep)
		}
		s.Step++
		return nil
	})
}

// Back returns one step. It is rejected on the first step.
func (m *Manager) Back(uid, id string) (Session, error) {
	return m.mutate(uid, id, func(s *session) error {
		if s.Step <= StepPreviewAlert {
			return fmt.Errorf("%w: already on the first step", ErrInvalidStep)
		}
		s.Step--
		return nil
	})
}

// SetRadius sets the targeting radius in miles.
func (m *Manager) SetRadius(uid, id string, miles int) (Session, error) {
	if miles < campaign.MinRadius || miles > campaign.MaxRadius {
		return Session{}, fmt.Errorf("%w: radius must be %d..%d miles", ErrInvalidInput, campaign.MinRadius, campaign.MaxRadius)
	}
	return m.mutate(uid, id, func(s *session) error {
		s.Radius = miles
		return nil
	})
}

// Edit changes the generated content. The alert itself is never touched.
func (m *Manager) Edit(uid, id string, p ContentPatch) (Session, error) {
	return m.mutate(uid, id, func(s *session) error {
		if s.Content == nil {
			return ErrNoContent
		}
		c := s.Content.clone()
		if p.HeadlineIndex != nil {
			i := *p.HeadlineIndex
			if i < 0 || i >= len(c.Headlines) {
				return fmt.Errorf("%w: headline index %d out of range", ErrInvalidInput, i)
			}
			c.HeadlineIndex = i
			c.Headline = c.Headlines[i]
		}
		if p.Headline != nil {
			h := strings.TrimSpace(*p.Headline)
			if h == "" || utf8.RuneCountInString(h) > adgen.MaxHeadlineLen {
				return fmt.Errorf("%w: headline must be 1..%d characters", ErrInvalidInput, adgen.MaxHeadlineLen)
			}
			c.Headline = h
			if c.HeadlineIndex < len(c.Headlines) {
				c.Headlines[c.HeadlineIndex] = h
			}
		}
		if p.Body != nil {
			b := strings.TrimSpace(*p.Body)
			if utf8.RuneCountInString(b) > adgen.MaxBodyLen {
				return fmt.Errorf("%w: body must be at most %d characters", ErrInvalidInput, adgen.MaxBodyLen)
			}
			c.Body = b
		}
		if p.ImageURL != nil {
			c.ImageURL = strings.TrimSpace(*p.ImageURL)
		}
		s.Content = &c
		return nil
	})
}

// Revert discards edits and restores the content as generated.
func (m *Manager) Revert(uid, id string) (Session, error) {
	return m.mutate(uid, id, func(s *session) error {
		if s.generated == nil {
			return ErrNoContent
		}
		s.Content = contentFrom(s.generated)
		return nil
	})
}

// Generate requests ad content for the session's alert. It is allowed only
// on the preview step. A failed generation still applies placeholder content
// and returns the *adgen.GenerationError alongside the session. A call whose
// result arrives after a newer call was issued returns ErrSuperseded and
// leaves the content alone. A result arriving once the session is being
// saved or no longer active is dropped with ErrInactive.
func (m *Manager) Generate(ctx context.Context, uid, id string, settings adgen.UserSettings, provider string) (Session, error) {
	m.mu.Lock()
	s, err := m.lookup(uid, id)
	if err == nil {
		err = checkActive(s)
	}
	if err == nil && s.Step != StepPreviewAlert {
		err = fmt.Errorf("%w: generate is only available while previewing the alert", ErrInvalidStep)
	}
	if err != nil {
		m.mu.Unlock()
		return Session{}, err
	}
	req := &adgen.Request{
		AlertDetails: adgen.AlertDetails{
			Event:       s.Alert.Event,
			AreaDesc:    s.Alert.AreaDesc,
			Severity:    s.Alert.Severity,
			Description: s.Alert.Description,
		},
		UserSettings: settings,
		Provider:     provider,
	}
	// a request that fails validation never reaches the provider and does
	// not take a sequence number
	if _, err := req.Normalize(); err != nil {
		view := s.view()
		m.mu.Unlock()
		return view, err
	}
	s.issued++
	seq := s.issued
	s.Generating = true
	m.mu.Unlock()

	res, genErr := m.gen.Generate(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	latest := seq == s.issued
	if latest {
		s.Generating = false
	}
	s.UpdatedAt = m.clock.Now()

	if res == nil {
		return s.view(), genErr
	}
	if !latest {
		if m.hooks.OnSuperseded != nil {
			m.hooks.OnSuperseded()
		}
		return s.view(), ErrSuperseded
	}
	if err := checkActive(s); err != nil {
		return s.view(), err
	}

	s.generated = res
	s.Content = contentFrom(res)
	s.GenError = ""
	var ge *adgen.GenerationError
	if errors.As(genErr, &ge) {
		s.GenError = adgen.GenericFailure
	}
	return s.view(), genErr
}

// Save stores the session as a campaign draft. It is allowed only on the
// confirm step and leaves the session in StateSaved with an exit target of
// the campaigns list.
func (m *Manager) Save(ctx context.Context, uid, id string) (Session, error) {
	m.mu.Lock()
	s, err := m.lookup(uid, id)
	if err == nil {
		err = checkActive(s)
	}
	if err == nil && s.Step != StepConfirmAndSave {
		err = fmt.Errorf("%w: save is only available on the confirm step", ErrInvalidStep)
	}
	if err != nil {
		m.mu.Unlock()
		return Session{}, err
	}

	c := campaign.Campaign{
		UID:        s.UID,
		AlertID:    s.AlertID,
		AlertEvent: s.Alert.Event,
		Radius:     s.Radius,
	}
	if s.Content != nil {
		c.Copy = campaign.Copy{Headline: s.Content.Headline, Body: s.Content.Body}
		c.Headlines = s.Content.clone().Headlines
		c.ImageURL = s.Content.ImageURL
	}
	s.saving = true
	m.mu.Unlock()

	saved, err := m.campaigns.Save(ctx, c)

	m.mu.Lock()
	defer m.mu.Unlock()
	s.saving = false
	s.UpdatedAt = m.clock.Now()
	if m.hooks.OnSave != nil {
		m.hooks.OnSave(err == nil)
	}
	if err != nil {
		return s.view(), err
	}
	s.State = StateSaved
	s.ExitTo = ExitCampaigns
	s.CampaignID = saved.ID
	m.logger.Info(ctx, "wizard saved campaign", "session_id", id, "campaign_id", saved.ID, "uid", uid)
	return s.view(), nil
}

// Sweep drops sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 && m.hooks.OnExpire != nil {
		m.hooks.OnExpire(n)
	}
	return n
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	t := m.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			if n := m.Sweep(); n > 0 {
				m.logger.Info(ctx, "wizard sessions expired", "count", n)
			}
		}
	}
}

// mutate applies fn to an active session under the lock.
func (m *Manager) mutate(uid, id string, fn func(*session) error) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(uid, id)
	if err != nil {
		return Session{}, err
	}
	if err := checkActive(s); err != nil {
		return s.view(), err
	}
	if err := fn(s); err != nil {
		return s.view(), err
	}
	s.UpdatedAt = m.clock.Now()
	return s.view(), nil
}

// lookup must be called with m.mu held.
func (m *Manager) lookup(uid, id string) (*session, error) {
	s, ok := m.sessions[id]
	if !ok || s.UID != uid {
		return nil, ErrSessionNotFound
	}
	if m.expired(s) {
		delete(m.sessions, id)
		if m.hooks.OnExpire != nil {
			m.hooks.OnExpire(1)
		}
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) expired(s *session) bool {
	return !s.saving && m.clock.Since(s.UpdatedAt) > m.ttl
}

func checkActive(s *session) error {
	if s.State != StateActive || s.saving {
		return ErrInactive
	}
	return nil
}

func contentFrom(r *adgen.Result) *Content {
	c := &Content{
		Headlines: append([]string(nil), r.Headlines...),
		Body:      r.Body,
		ImageURL:  r.ImageURL,
	}
	if len(c.Headlines) > 0 {
		c.Headline = c.Headlines[0]
	}
	return c
}
