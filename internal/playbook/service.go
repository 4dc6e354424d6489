// Package playbook manages the default playbook catalogue and each user's
// copy of it.
package playbook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/breezecue/internal/docstore"
)

// Service is the business boundary for playbooks.
type Service struct {
	store    docstore.Store
	defaults []Playbook
	logger   log.Logger
	clock    clockwork.Clock
}

// NewService creates a playbook service backed by store. clock may be nil.
func NewService(store docstore.Store, logger log.Logger, clock clockwork.Clock) (*Service, error) {
	defs, err := loadDefaults(defaultsYAML)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Nop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, defaults: defs, logger: logger, clock: clock}, nil
}

// UserCollection is the collection path of uid's playbooks.
func UserCollection(uid string) string {
	return docstore.Join("users", uid, userCollection)
}

// Seed writes the embedded defaults into the shared defaults collection in
// one batch. Existing defaults with the same id are overwritten.
func (s *Service) Seed(ctx context.Context) error {
	now := s.clock.Now().UTC()
	b := docstore.NewBatch()
	for _, p := range s.defaults {
		p.CreatedAt, p.UpdatedAt = now, now
		data, err := docstore.Encode(p)
		if err != nil {
			return err
		}
		b.Set(docstore.Join(DefaultsCollection, p.ID), data)
	}
	if err := s.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("seed default playbooks: %w", err)
	}
	s.logger.Info(ctx, "default playbooks seeded", "count", b.Len())
	return nil
}

// Defaults returns the default playbooks for a business type, read from the
// shared collection and falling back to the embedded set if it is empty.
func (s *Service) Defaults(ctx context.Context, businessType string) ([]Playbook, error) {
	bt, ok := CanonicalBusinessType(businessType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBusinessType, businessType)
	}

	docs, err := s.store.Get(ctx, docstore.Collection(DefaultsCollection).Eq("businessType", bt).Order("name", false))
	if err != nil {
		return nil, fmt.Errorf("load default playbooks: %w", err)
	}
	if len(docs) > 0 {
		return decodeAll(docs)
	}

	var out []Playbook
	for _, p := range s.defaults {
		if p.BusinessType == bt {
			out = append(out, p)
		}
	}
	return out, nil
}

// List returns uid's playbooks ordered by name.
func (s *Service) List(ctx context.Context, uid string) ([]Playbook, error) {
	docs, err := s.store.Get(ctx, docstore.Collection(UserCollection(uid)).Order("name", false))
	if err != nil {
		return nil, fmt.Errorf("list playbooks: %w", err)
	}
	return decodeAll(docs)
}

// ReplaceBatch queues, on b, the deletion of every playbook uid has and the
// insertion of a fresh copy of every default for businessType.
func (s *Service) ReplaceBatch(ctx context.Context, b *docstore.Batch, uid, businessType string) error {
	defs, err := s.Defaults(ctx, businessType)
	if err != nil {
		return err
	}
	existing, err := s.store.Get(ctx, docstore.Collection(UserCollection(uid)))
	if err != nil {
		return fmt.Errorf("list playbooks: %w", err)
	}

	for _, d := range existing {
		b.Delete(d.Path)
	}

	now := s.clock.Now().UTC()
	for _, p := range defs {
		p.ID = docstore.NewID()
		p.IsDefault = true
		p.CreatedAt, p.UpdatedAt = now, now
		data, err := docstore.Encode(p)
		if err != nil {
			return err
		}
		b.Set(docstore.Join(UserCollection(uid), p.ID), data)
	}
	return nil
}

// Replace swaps uid's playbooks for the defaults of businessType in one
// all-or-nothing batch.
func (s *Service) Replace(ctx context.Context, uid, businessType string) error {
	b := docstore.NewBatch()
	if err := s.ReplaceBatch(ctx, b, uid, businessType); err != nil {
		return err
	}
	if err := s.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("replace playbooks: %w", err)
	}
	s.logger.Info(ctx, "playbooks replaced", "uid", uid, "business_type", businessType, "writes", b.Len())
	return nil
}

// Update edits a user playbook. Edited playbooks are no longer defaults.
func (s *Service) Update(ctx context.Context, uid, id string, p Patch) (Playbook, error) {
	if p.empty() {
		return Playbook{}, fmt.Errorf("%w: nothing to update", ErrInvalidPlaybook)
	}
	patch := docstore.Data{
		"isDefault": false,
		"updatedAt": s.clock.Now().UTC().Format(time.RFC3339Nano),
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return Playbook{}, fmt.Errorf("%w: name must not be empty", ErrInvalidPlaybook)
		}
		patch["name"] = name
	}
	if p.Trigger != nil {
		patch["trigger"] = strings.TrimSpace(*p.Trigger)
	}
	if p.Copy != nil {
		patch["copy"] = strings.TrimSpace(*p.Copy)
	}

	path := docstore.Join(UserCollection(uid), id)
	if err := s.store.Update(ctx, path, patch); err != nil {
		return Playbook{}, err
	}
	d, ok, err := s.store.GetDoc(ctx, path)
	if err != nil {
		return Playbook{}, err
	}
	if !ok {
		return Playbook{}, fmt.Errorf("playbook %s: %w", id, docstore.ErrNotFound)
	}
	return decode(d)
}

// Delete removes a user playbook.
func (s *Service) Delete(ctx context.Context, uid, id string) error {
	return s.store.Delete(ctx, docstore.Join(UserCollection(uid), id))
}

// Watch calls fn with uid's playbooks now and after every change.
func (s *Service) Watch(ctx context.Context, uid string, fn func([]Playbook)) (func(), error) {
	q := docstore.Collection(UserCollection(uid)).Order("name", false)
	return s.store.OnChange(ctx, q, func(docs []docstore.Doc) {
		pbs, err := decodeAll(docs)
		if err != nil {
			s.logger.Error(ctx, err, "decode playbooks", "uid", uid)
			return
		}
		fn(pbs)
	})
}

func decode(d docstore.Doc) (Playbook, error) {
	var p Playbook
	if err := docstore.Decode(d.Data, &p); err != nil {
		return Playbook{}, err
	}
	p.ID = d.ID()
	return p, nil
}

func decodeAll(docs []docstore.Doc) ([]Playbook, error) {
	out := make([]Playbook, 0, len(docs))
	for _, d := range docs {
		p, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
