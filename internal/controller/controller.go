// Package controller drives one profile page: load, search, and owner mutations.
//
// Mutations follow apply-then-confirm: the change is applied to a copy of the
// link collection, the full sequence is persisted, and the copy replaces the
// current state only once the store confirms. On failure the copy is dropped
// and the previous state stays visible.
package controller

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/metrics"
)

var (
	// ErrNotLoaded is returned by mutations before a successful Load.
	ErrNotLoaded = errors.New("profile not loaded")

	// ErrLoading is returned by Load while another Load is running.
	ErrLoading = errors.New("profile is loading")

	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("controller closed")
)

// ProfileStore is what the controller needs from the persistence adapter.
type ProfileStore interface {
	FetchByUsername(ctx context.Context, username string) (domain.Profile, bool, error)
	FetchForUpdate(ctx context.Context, username string) (domain.Profile, bool, error)
	PersistLinks(ctx context.Context, username, ownerID string, links []domain.LinkRecord) error
	PersistTheme(ctx context.Context, username, ownerID string, theme domain.Theme) error
}

// Controller is safe for concurrent use. At most one save runs at a time.
type Controller struct {
	store    ProfileStore
	identity domain.Identity
	log      logger.Logger
	metrics  *metrics.Metrics
	newID    domain.IDGenerator
	forWrite bool

	mu          sync.Mutex
	state       State
	profile     domain.Profile
	links       *domain.LinkCollection
	searchField domain.FilterField
	searchTerm  string
	lastErr     error
	closed      bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records mutation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithIDGenerator replaces the link id generator. Tests use it for stable ids.
func WithIDGenerator(gen domain.IDGenerator) Option {
	return func(c *Controller) { c.newID = gen }
}

// ForUpdate makes Load read the row of record, bypassing shared reads and
// caches. Controllers that will mutate must use it: every save replaces the
// whole link sequence with one built on what Load returned.
func ForUpdate() Option {
	return func(c *Controller) { c.forWrite = true }
}

// New returns an Idle controller acting as identity.
func New(store ProfileStore, identity domain.Identity, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:       store,
		identity:    identity,
		log:         log,
		newID:       domain.NewLinkID,
		state:       Idle,
		searchField: domain.FilterTitle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.links = domain.NewLinkCollection(nil, c.newID)
	return c
}

// Load fetches username. A missing profile moves to Absent and is not an error.
// A failed fetch moves to LoadError, from which the controller does not recover.
func (c *Controller) Load(ctx context.Context, username string) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state == Loading:
		c.mu.Unlock()
		return ErrLoading
	case c.state == Saving:
		c.mu.Unlock()
		return domain.ErrSaveInProgress
	case c.state == LoadError:
		err := c.lastErr
		c.mu.Unlock()
		return err
	}
	c.state = Loading
	c.mu.Unlock()

	fetch := c.store.FetchByUsername
	if c.forWrite {
		fetch = c.store.FetchForUpdate
	}
	p, found, err := fetch(ctx, username)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	switch {
	case err != nil:
		c.state = LoadError
		c.lastErr = err
		c.log.Warn("profile load failed", logger.String("username", username), logger.Error(err))
		return err
	case !found:
		c.state = Absent
		c.profile = domain.Profile{Username: domain.NormalizeUsername(username)}
		c.links = domain.NewLinkCollection(nil, c.newID)
	default:
		c.state = Loaded
		c.profile = p
		c.links = domain.NewLinkCollection(p.Links, c.newID)
	}
	c.lastErr = nil
	return nil
}

// SetSearch sets the filter applied by View. An empty field means title.
func (c *Controller) SetSearch(field, term string) error {
	f, err := domain.ParseFilterField(field)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchField = f
	c.searchTerm = term
	return nil
}

// View returns a copy of what the page should show right now.
func (c *Controller) View() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	links := slices.Collect(c.links.Filter(c.searchField, c.searchTerm))
	if links == nil {
		links = []domain.LinkRecord{}
	}
	return Snapshot{
		Username:    c.profile.Username,
		OwnerID:     c.profile.OwnerID,
		Theme:       c.profile.Theme,
		CreatedAt:   c.profile.CreatedAt,
		Links:       links,
		Total:       c.links.Len(),
		SearchField: c.searchField,
		SearchTerm:  c.searchTerm,
		CanMutate:   c.state.hasProfile() && domain.CanMutate(c.profile, c.identity),
		State:       c.state,
		Err:         c.lastErr,
	}
}

// Add appends a link built from d and returns it with its assigned id.
func (c *Controller) Add(ctx context.Context, d domain.LinkDraft) (domain.LinkRecord, error) {
	var added domain.LinkRecord
	err := c.mutateLinks(ctx, "add", func(next *domain.LinkCollection) error {
		records, err := next.Add(d)
		if err != nil {
			return err
		}
		added = records[len(records)-1]
		return nil
	})
	if err != nil {
		return domain.LinkRecord{}, err
	}
	return added, nil
}

// Edit merges p into the link id. The id and position never change.
func (c *Controller) Edit(ctx context.Context, id string, p domain.LinkPatch) (domain.LinkRecord, error) {
	var edited domain.LinkRecord
	err := c.mutateLinks(ctx, "edit", func(next *domain.LinkCollection) error {
		if err := next.Edit(id, p); err != nil {
			return err
		}
		edited, _ = next.Get(id)
		return nil
	})
	if err != nil {
		return domain.LinkRecord{}, err
	}
	return edited, nil
}

// Delete removes link id.
func (c *Controller) Delete(ctx context.Context, id string) error {
	return c.mutateLinks(ctx, "delete", func(next *domain.LinkCollection) error {
		return next.Delete(id)
	})
}

// Reorder moves link id to target, shifting the links in between.
func (c *Controller) Reorder(ctx context.Context, id string, target int) error {
	return c.mutateLinks(ctx, "reorder", func(next *domain.LinkCollection) error {
		return next.Reorder(id, target)
	})
}

// SetTheme validates theme and persists it as the profile's display theme.
func (c *Controller) SetTheme(ctx context.Context, theme string) error {
	t, err := domain.ParseTheme(theme)
	if err != nil {
		c.reject("set_theme", err)
		return err
	}

	snap, err := c.beginSave("set_theme")
	if err != nil {
		return err
	}

	err = c.store.PersistTheme(ctx, snap.Username, c.identity.ID, t)
	c.finishSave("set_theme", err, func() { c.profile.Theme = t })
	return err
}

// Close detaches the controller. Saves still in flight complete at the store
// but no longer change what View returns.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Controller) mutateLinks(ctx context.Context, op string, apply func(*domain.LinkCollection) error) error {
	snap, err := c.beginSave(op)
	if err != nil {
		return err
	}

	next := snap.links.Clone()
	if err := apply(next); err != nil {
		c.finishSave(op, err, nil)
		return err
	}

	err = c.store.PersistLinks(ctx, snap.Username, c.identity.ID, next.Records())
	c.finishSave(op, err, func() {
		c.links = next
		c.profile.Links = next.Records()
	})
	return err
}

type saveSnapshot struct {
	Username string
	links    *domain.LinkCollection
}

// beginSave checks the gate and moves to Saving.
func (c *Controller) beginSave(op string) (saveSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch {
	case c.closed:
		err = ErrClosed
	case c.state == Saving:
		err = domain.ErrSaveInProgress
	case c.state == Absent:
		err = domain.ErrProfileNotFound
	case c.state != Loaded:
		err = ErrNotLoaded
	case !domain.CanMutate(c.profile, c.identity):
		err = domain.ErrUnauthorized
	}
	if err != nil {
		c.metrics.Mutation(op, metrics.OutcomeRejected)
		if !c.closed {
			c.lastErr = err
		}
		return saveSnapshot{}, err
	}

	c.state = Saving
	return saveSnapshot{Username: c.profile.Username, links: c.links}, nil
}

// finishSave leaves Saving. commit runs under the lock, only on success.
func (c *Controller) finishSave(op string, err error, commit func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrLinkNotFound) || errors.Is(err, domain.ErrIndexOutOfRange) {
			outcome = metrics.OutcomeRejected
		}
		c.metrics.Mutation(op, outcome)
	} else {
		c.metrics.Mutation(op, metrics.OutcomeOK)
	}

	if c.closed {
		return
	}
	c.state = Loaded
	if err != nil {
		c.lastErr = err
		if errors.Is(err, domain.ErrTransient) {
			c.log.Warn("save failed",
				logger.String("op", op),
				logger.String("username", c.profile.Username),
				logger.Error(err))
		}
		return
	}
	commit()
	c.lastErr = nil
	c.log.Debug("saved",
		logger.String("op", op),
		logger.String("username", c.profile.Username))
}

func (c *Controller) reject(op string, err error) {
	c.metrics.Mutation(op, metrics.OutcomeRejected)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.lastErr = err
	}
}
