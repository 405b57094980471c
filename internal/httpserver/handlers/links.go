package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkhub/internal/controller"
	"github.com/MrSnakeDoc/linkhub/internal/domain"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/respond"
)

// mutationFunc runs one change on a loaded controller and writes the response.
type mutationFunc func(w http.ResponseWriter, r *http.Request, ctrl *controller.Controller) error

// mutate loads {username} for the caller and runs fn under the per-profile lock,
// so concurrent requests for one profile apply in arrival order.
func mutate(d deps.Deps, fn mutationFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := domain.NormalizeUsername(chi.URLParam(r, "username"))

		if d.Locks != nil {
			unlock := d.Locks.Lock(username)
			defer unlock()
		}

		ctrl := newController(d, r, controller.ForUpdate())
		defer ctrl.Close()

		if err := ctrl.Load(r.Context(), username); err != nil {
			writeDomainError(w, r, d.Logger, err)
			return
		}
		if err := fn(w, r, ctrl); err != nil {
			writeDomainError(w, r, d.Logger, err)
		}
	}
}

// AddLink appends a link to the end of the profile.
func AddLink(d deps.Deps) http.HandlerFunc {
	return mutate(d, func(w http.ResponseWriter, r *http.Request, ctrl *controller.Controller) error {
		var draft domain.LinkDraft
		if !decodeJSON(w, r, d.MaxBodyBytes, &draft) {
			return nil
		}
		link, err := ctrl.Add(r.Context(), draft)
		if err != nil {
			return err
		}
		respond.JSON(w, http.StatusCreated, link)
		return nil
	})
}

// EditLink merges the given fields into link {id}.
func EditLink(d deps.Deps) http.HandlerFunc {
	return mutate(d, func(w http.ResponseWriter, r *http.Request, ctrl *controller.Controller) error {
		var patch domain.LinkPatch
		if !decodeJSON(w, r, d.MaxBodyBytes, &patch) {
			return nil
		}
		link, err := ctrl.Edit(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			return err
		}
		respond.JSON(w, http.StatusOK, link)
		return nil
	})
}

type deleteLinkResponse struct {
	Deleted string `json:"deleted"`
	Total   int    `json:"total"`
}

// DeleteLink removes link {id} and reports how many links remain.
func DeleteLink(d deps.Deps) http.HandlerFunc {
	return mutate(d, func(w http.ResponseWriter, r *http.Request, ctrl *controller.Controller) error {
		id := chi.URLParam(r, "id")
		if err := ctrl.Delete(r.Context(), id); err != nil {
			return err
		}
		respond.JSON(w, http.StatusOK, deleteLinkResponse{Deleted: id, Total: ctrl.View().Total})
		return nil
	})
}

type moveLinkRequest struct {
	Index *int `json:"index"`
}

// MoveLink reorders link {id} to the requested zero-based index and returns the new order.
func MoveLink(d deps.Deps) http.HandlerFunc {
	return mutate(d, func(w http.ResponseWriter, r *http.Request, ctrl *controller.Controller) error {
		var req moveLinkRequest
		if !decodeJSON(w, r, d.MaxBodyBytes, &req) {
			return nil
		}
		if req.Index == nil {
			respond.Fail(w, http.StatusBadRequest, respond.CodeValidation, "index is required", nil)
			return nil
		}
		if err := ctrl.Reorder(r.Context(), chi.URLParam(r, "id"), *req.Index); err != nil {
			return err
		}
		respond.JSON(w, http.StatusOK, viewOf(ctrl.View()))
		return nil
	})
}

type themeRequest struct {
	Theme string `json:"theme"`
}

type themeResponse struct {
	Theme domain.Theme `json:"theme"`
}

// SetTheme changes the display theme of the profile.
func SetTheme(d deps.Deps) http.HandlerFunc {
	return mutate(d, func(w http.ResponseWriter, r *http.Request, ctrl *controller.Controller) error {
		var req themeRequest
		if !decodeJSON(w, r, d.MaxBodyBytes, &req) {
			return nil
		}
		if err := ctrl.SetTheme(r.Context(), req.Theme); err != nil {
			return err
		}
		respond.JSON(w, http.StatusOK, themeResponse{Theme: ctrl.View().Theme})
		return nil
	})
}
