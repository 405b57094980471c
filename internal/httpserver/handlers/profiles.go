package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkhub/internal/controller"
	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/respond"
	"github.com/MrSnakeDoc/linkhub/internal/identity"
)

type searchView struct {
	Field string `json:"field"`
	Query string `json:"q"`
}

type profileView struct {
	Username  string              `json:"username"`
	Theme     domain.Theme        `json:"theme"`
	Links     []domain.LinkRecord `json:"links"`
	Total     int                 `json:"total"`
	CanEdit   bool                `json:"can_edit"`
	CreatedAt time.Time           `json:"created_at"`
	Search    *searchView         `json:"search,omitempty"`
}

func viewOf(s controller.Snapshot) profileView {
	v := profileView{
		Username:  s.Username,
		Theme:     s.Theme,
		Links:     s.Links,
		Total:     s.Total,
		CanEdit:   s.CanMutate,
		CreatedAt: s.CreatedAt,
	}
	if s.SearchTerm != "" {
		v.Search = &searchView{Field: string(s.SearchField), Query: s.SearchTerm}
	}
	return v
}

// newController builds a page controller for the caller of r.
func newController(d deps.Deps, r *http.Request, extra ...controller.Option) *controller.Controller {
	opts := append([]controller.Option{controller.WithMetrics(d.Metrics)}, extra...)
	if d.NewLinkID != nil {
		opts = append(opts, controller.WithIDGenerator(d.NewLinkID))
	}
	return controller.New(d.Profiles, identity.FromContext(r.Context()), d.Logger, opts...)
}

// GetProfile serves the public page data of {username}, filtered by ?q= and ?field=.
func GetProfile(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")

		ctrl := newController(d, r)
		defer ctrl.Close()

		q := r.URL.Query()
		if err := ctrl.SetSearch(q.Get("field"), q.Get("q")); err != nil {
			writeDomainError(w, r, d.Logger, err)
			return
		}
		if err := ctrl.Load(r.Context(), username); err != nil {
			writeDomainError(w, r, d.Logger, err)
			return
		}

		snap := ctrl.View()
		if snap.State == controller.Absent {
			writeDomainError(w, r, d.Logger, domain.ErrProfileNotFound)
			return
		}
		respond.JSON(w, http.StatusOK, viewOf(snap))
	}
}

type profileSummary struct {
	Username  string       `json:"username"`
	Theme     domain.Theme `json:"theme"`
	LinkCount int          `json:"link_count"`
	CreatedAt time.Time    `json:"created_at"`
}

// ListProfiles returns the caller's profiles, newest first.
func ListProfiles(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity.FromContext(r.Context())
		list, err := d.Profiles.ListByOwner(r.Context(), id.ID)
		if err != nil {
			writeDomainError(w, r, d.Logger, err)
			return
		}

		out := make([]profileSummary, 0, len(list))
		for _, p := range list {
			out = append(out, profileSummary{
				Username:  p.Username,
				Theme:     p.Theme,
				LinkCount: len(p.Links),
				CreatedAt: p.CreatedAt,
			})
		}
		respond.JSON(w, http.StatusOK, out)
	}
}

type createProfileRequest struct {
	Username string             `json:"username"`
	Theme    string             `json:"theme"`
	Links    []domain.LinkDraft `json:"links"`
}

// CreateProfile claims a username for the caller.
func CreateProfile(d deps.Deps) http.HandlerFunc {
	gen := d.NewLinkID
	if gen == nil {
		gen = domain.NewLinkID
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req createProfileRequest
		if !decodeJSON(w, r, d.MaxBodyBytes, &req) {
			return
		}

		theme, err := domain.ParseTheme(req.Theme)
		if err != nil {
			writeDomainError(w, r, d.Logger, err)
			return
		}
		links := make([]domain.LinkRecord, 0, len(req.Links))
		for i, draft := range req.Links {
			link, err := domain.NewLink(draft, gen)
			if err != nil {
				writeDomainError(w, r, d.Logger, &indexedError{index: i, err: err})
				return
			}
			links = append(links, link)
		}

		id := identity.FromContext(r.Context())
		p, err := d.Profiles.CreateProfile(r.Context(), req.Username, id.ID, theme, links)
		if err != nil {
			writeDomainError(w, r, d.Logger, err)
			return
		}

		w.Header().Set("Location", "/profile/"+p.Username)
		respond.JSON(w, http.StatusCreated, profileView{
			Username:  p.Username,
			Theme:     p.Theme,
			Links:     p.Links,
			Total:     len(p.Links),
			CanEdit:   true,
			CreatedAt: p.CreatedAt,
		})
	}
}
