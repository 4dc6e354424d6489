// Package campaign stores ad campaign drafts and moves them through launch.
package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breezecue/internal/docstore"
)

// Notifier is told about launched campaigns.
type Notifier interface {
	Send(ctx context.Context, c *Campaign) error
}

// Hooks are optional callbacks for observability.
type Hooks struct {
	OnAction func(action string)
	OnNotify func(ok bool)
}

// Service is the business boundary for campaigns.
type Service struct {
	store    docstore.Store
	logger   log.Logger
	clock    clockwork.Clock
	notifier Notifier
	hooks    Hooks
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the launch notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithHooks sets observability hooks.
func WithHooks(h Hooks) Option {
	return func(s *Service) { s.hooks = h }
}

// WithClock overrides the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a campaign service backed by store.
func NewService(store docstore.Store, logger log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{store: store, logger: logger, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save validates c and stores it as a new draft. Validation happens before
// any write; the radius is clamped and status, id and createdAt are set.
func (s *Service) Save(ctx context.Context, c Campaign) (*Campaign, error) {
	c.UID = strings.TrimSpace(c.UID)
	c.AlertID = strings.TrimSpace(c.AlertID)
	first := firstHeadline(c.Headlines)
	switch {
	case c.UID == "":
		return nil, fmt.Errorf("%w: missing uid", ErrInvalidCampaign)
	case c.AlertID == "":
		return nil, fmt.Errorf("%w: missing alert id", ErrInvalidCampaign)
	case first == "":
		return nil, fmt.Errorf("%w: generate ad content before saving", ErrInvalidCampaign)
	}
	if strings.TrimSpace(c.Copy.Headline) == "" {
		c.Copy.Headline = first
	}
	if c.AlertEvent == "" {
		c.AlertEvent = "N/A"
	}

	c.ID = docstore.NewID()
	c.Radius = ClampRadius(c.Radius)
	c.Status = StatusDraft
	c.CreatedAt = s.clock.Now().UTC()
	c.LaunchedAt = time.Time{}

	data, err := docstore.Encode(c)
	if err != nil {
		return nil, err
	}
	delete(data, "id")
	if err := s.store.Set(ctx, docstore.Join(Collection, c.ID), data); err != nil {
		return nil, fmt.Errorf("save campaign: %w", err)
	}
	s.action("save")
	s.logger.Info(ctx, "campaign draft saved", "campaign_id", c.ID, "uid", c.UID, "alert_id", c.AlertID)
	return &c, nil
}

// Get returns a campaign owned by uid.
func (s *Service) Get(ctx context.Context, uid, id string) (*Campaign, error) {
	d, ok, err := s.store.GetDoc(ctx, docstore.Join(Collection, id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, docstore.ErrNotFound)
	}
	c, err := decode(d)
	if err != nil {
		return nil, err
	}
	if c.UID != uid {
		return nil, ErrForbidden
	}
	return c, nil
}

// List returns uid's campaigns, newest first.
func (s *Service) List(ctx context.Context, uid string) ([]*Campaign, error) {
	docs, err := s.store.Get(ctx, listQuery(uid))
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return decodeAll(docs)
}

// Launch marks a campaign launched and notifies in the background.
// Launching an already launched campaign changes nothing.
func (s *Service) Launch(ctx context.Context, uid, id string) (*Campaign, error) {
	c, err := s.Get(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusLaunched {
		return c, nil
	}

	now := s.clock.Now().UTC()
	patch := docstore.Data{
		"status":     string(StatusLaunched),
		"launchedAt": now.Format(time.RFC3339Nano),
	}
	if err := s.store.Update(ctx, docstore.Join(Collection, id), patch); err != nil {
		return nil, fmt.Errorf("launch campaign: %w", err)
	}
	c.Status, c.LaunchedAt = StatusLaunched, now
	s.action("launch")
	s.logger.Info(ctx, "campaign launched", "campaign_id", id, "uid", uid)

	if s.notifier != nil {
		launched := *c
		go s.notify(context.WithoutCancel(ctx), &launched)
	}
	return c, nil
}

// Delete removes a campaign owned by uid.
func (s *Service) Delete(ctx context.Context, uid, id string) error {
	if _, err := s.Get(ctx, uid, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, docstore.Join(Collection, id)); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	s.action("delete")
	s.logger.Info(ctx, "campaign deleted", "campaign_id", id, "uid", uid)
	return nil
}

// Watch calls fn with uid's campaigns now and after every change, until ctx
// ends or the returned func is called.
func (s *Service) Watch(ctx context.Context, uid string, fn func([]*Campaign)) (func(), error) {
	return s.store.OnChange(ctx, listQuery(uid), func(docs []docstore.Doc) {
		cs, err := decodeAll(docs)
		if err != nil {
			s.logger.Error(ctx, err, "decode campaigns", "uid", uid)
			return
		}
		fn(cs)
	})
}

func (s *Service) notify(ctx context.Context, c *Campaign) {
	err := s.notifier.Send(ctx, c)
	if s.hooks.OnNotify != nil {
		s.hooks.OnNotify(err == nil)
	}
	if err != nil {
		s.logger.Error(ctx, err, "launch notification failed", "campaign_id", c.ID)
	}
}

func (s *Service) action(name string) {
	if s.hooks.OnAction != nil {
		s.hooks.OnAction(name)
	}
}

func listQuery(uid string) docstore.Query {
	return docstore.Collection(Collection).Eq("uid", uid).Order("createdAt", true)
}

// firstHeadline returns the first non-blank headline, or "".
func firstHeadline(hs []string) string {
	for _, h := range hs {
		if h = strings.TrimSpace(h); h != "" {
			return h
		}
	}
	return ""
}

func decode(d docstore.Doc) (*Campaign, error) {
	var c Campaign
	if err := docstore.Decode(d.Data, &c); err != nil {
		return nil, err
	}
	c.ID = d.ID()
	return &c, nil
}

func decodeAll(docs []docstore.Doc) ([]*Campaign, error) {
	out := make([]*Campaign, 0, len(docs))
	for _, d := range docs {
		c, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
