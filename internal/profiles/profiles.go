// Package profiles translates between domain profiles and rows of the profiles table.
//
// It owns no business rules beyond that translation: callers decide who may
// write, and the backend enforces it again by scoping every update to the
// owner id. Store failures come back as *domain.TransientError and are never
// retried here.
package profiles

import (
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/metrics"
	"github.com/MrSnakeDoc/linkhub/internal/store"
)

// Store is the profile-level view of a store.Backend.
type Store struct {
	backend store.Backend
	log     logger.Logger
	metrics *metrics.Metrics
	fetches singleflight.Group
	now     func() time.Time
}

// New wraps backend. m may be nil.
func New(backend store.Backend, log logger.Logger, m *metrics.Metrics) *Store {
	return &Store{
		backend: backend,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// sharedFetchTimeout bounds a coalesced fetch, which no single caller can cancel.
const sharedFetchTimeout = 10 * time.Second

type fetchResult struct {
	profile domain.Profile
	found   bool
}

// FetchByUsername loads one profile. A missing row is found=false with a nil error.
// Concurrent calls for the same username share one backend request; a caller
// whose ctx ends stops waiting without failing the others. Writes end the
// shared request so later callers never join a read older than the write.
func (s *Store) FetchByUsername(ctx context.Context, username string) (domain.Profile, bool, error) {
	username = domain.NormalizeUsername(username)
	if domain.ValidateUsername(username) != nil {
		return domain.Profile{}, false, nil
	}

	ch := s.fetches.DoChan(username, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		start := time.Now()
		rows, err := s.backend.SelectByUsername(shared, username)
		s.metrics.ObserveStore(s.backend.Name(), "select_by_username", start, err)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return fetchResult{}, nil
		}
		return fetchResult{profile: toProfile(rows[0]), found: true}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.Profile{}, false, domain.Transient("fetch profile", ctx.Err())
	}
	if res.Err != nil {
		s.log.Warn("profile fetch failed", logger.String("username", username), logger.Error(res.Err))
		return domain.Profile{}, false, domain.Transient("fetch profile", res.Err)
	}

	fr := res.Val.(fetchResult)
	if !fr.found {
		return domain.Profile{}, false, nil
	}
	// Results are shared between coalesced callers.
	p := fr.profile
	p.Links = slices.Clone(p.Links)
	return p, true, nil
}

// FetchForUpdate loads one profile from the row of record, without coalescing
// and without any cache. Mutations build their full-replace write on it.
func (s *Store) FetchForUpdate(ctx context.Context, username string) (domain.Profile, bool, error) {
	username = domain.NormalizeUsername(username)
	if domain.ValidateUsername(username) != nil {
		return domain.Profile{}, false, nil
	}

	start := time.Now()
	rows, err := store.SelectFresh(ctx, s.backend, username)
	s.metrics.ObserveStore(s.backend.Name(), "select_for_update", start, err)
	if err != nil {
		s.log.Warn("profile fetch failed", logger.String("username", username), logger.Error(err))
		return domain.Profile{}, false, domain.Transient("fetch profile", err)
	}
	if len(rows) == 0 {
		return domain.Profile{}, false, nil
	}
	return toProfile(rows[0]), true, nil
}

// ListByOwner returns the profiles created by ownerID, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]domain.Profile, error) {
	if ownerID == "" {
		return []domain.Profile{}, nil
	}

	start := time.Now()
	rows, err := s.backend.SelectByUserID(ctx, ownerID)
	s.metrics.ObserveStore(s.backend.Name(), "select_by_user_id", start, err)
	if err != nil {
		return nil, domain.Transient("list profiles", err)
	}

	out := make([]domain.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, toProfile(row))
	}
	return out, nil
}

// CreateProfile inserts a new profile owned by ownerID.
// It checks for an existing row first and writes nothing if the username is
// taken; a duplicate-key error from a racing insert is reported the same way.
func (s *Store) CreateProfile(ctx context.Context, username, ownerID string, theme domain.Theme, links []domain.LinkRecord) (domain.Profile, error) {
	if ownerID == "" {
		return domain.Profile{}, domain.ErrUnauthorized
	}
	username = domain.NormalizeUsername(username)
	if err := domain.ValidateUsername(username); err != nil {
		return domain.Profile{}, err
	}
	theme, err := domain.ParseTheme(string(theme))
	if err != nil {
		return domain.Profile{}, err
	}
	if err := validateLinks(links); err != nil {
		return domain.Profile{}, err
	}

	start := time.Now()
	existing, err := store.SelectFresh(ctx, s.backend, username)
	s.metrics.ObserveStore(s.backend.Name(), "select_by_username", start, err)
	if err != nil {
		return domain.Profile{}, domain.Transient("check username", err)
	}
	if len(existing) > 0 {
		return domain.Profile{}, domain.ErrUsernameTaken
	}

	row := store.Row{
		Username:  username,
		UserID:    ownerID,
		Links:     slices.Clone(links),
		Theme:     theme,
		CreatedAt: s.now().UTC(),
	}
	if row.Links == nil {
		row.Links = []domain.LinkRecord{}
	}

	start = time.Now()
	err = s.backend.Insert(ctx, row)
	s.fetches.Forget(username)
	s.metrics.ObserveStore(s.backend.Name(), "insert", start, err)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return domain.Profile{}, domain.ErrUsernameTaken
	case err != nil:
		s.log.Warn("profile insert failed", logger.String("username", username), logger.Error(err))
		return domain.Profile{}, domain.Transient("create profile", err)
	}

	s.metrics.ProfileCreated()
	s.log.Info("profile created", logger.String("username", username))
	return toProfile(row), nil
}

// PersistLinks replaces the whole links sequence of username.
// It returns domain.ErrUnauthorized when no row matches both username and ownerID.
func (s *Store) PersistLinks(ctx context.Context, username, ownerID string, links []domain.LinkRecord) error {
	if err := validateLinks(links); err != nil {
		return err
	}
	links = slices.Clone(links)
	if links == nil {
		links = []domain.LinkRecord{}
	}
	return s.update(ctx, "persist links", username, ownerID, store.Patch{Links: &links})
}

// PersistTheme writes the theme column of username.
func (s *Store) PersistTheme(ctx context.Context, username, ownerID string, theme domain.Theme) error {
	theme, err := domain.ParseTheme(string(theme))
	if err != nil {
		return err
	}
	return s.update(ctx, "persist theme", username, ownerID, store.Patch{Theme: &theme})
}

func (s *Store) update(ctx context.Context, op, username, ownerID string, patch store.Patch) error {
	if ownerID == "" {
		return domain.ErrUnauthorized
	}
	username = domain.NormalizeUsername(username)

	start := time.Now()
	err := s.backend.UpdateByUsername(ctx, username, ownerID, patch)
	// A failed write may still have landed.
	s.fetches.Forget(username)
	if errors.Is(err, store.ErrNoRows) {
		s.metrics.ObserveStore(s.backend.Name(), "update_by_username", start, nil)
		return domain.ErrUnauthorized
	}
	s.metrics.ObserveStore(s.backend.Name(), "update_by_username", start, err)
	if err != nil {
		s.log.Warn("profile update failed",
			logger.String("op", op),
			logger.String("username", username),
			logger.Error(err))
		return domain.Transient(op, err)
	}
	return nil
}

// Ping reports whether the backend is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

func validateLinks(links []domain.LinkRecord) error {
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		if l.ID == "" {
			return &domain.ValidationError{Field: "id", Code: domain.InvalidField}
		}
		if _, dup := seen[l.ID]; dup {
			return &domain.ValidationError{Field: "id", Code: domain.InvalidField, Value: l.ID}
		}
		seen[l.ID] = struct{}{}
		if err := domain.Validate(l); err != nil {
			return err
		}
	}
	return nil
}

func toProfile(row store.Row) domain.Profile {
	theme, err := domain.ParseTheme(string(row.Theme))
	if err != nil {
		theme = domain.DefaultTheme
	}
	links := slices.Clone(row.Links)
	if links == nil {
		links = []domain.LinkRecord{}
	}
	return domain.Profile{
		Username:  row.Username,
		OwnerID:   row.UserID,
		Links:     links,
		Theme:     theme,
		CreatedAt: row.CreatedAt,
	}
}
