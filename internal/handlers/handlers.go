// Package handlers exposes the brokering core as a JSON API. Bodies carry
// content payloads only; statuses, owner stamps, and timestamps are set by
// the core. Actors arrive pre-authenticated: an upstream gateway puts the
// caller's id in X-Actor-ID and this layer resolves the role from the user
// record.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reciclo/broker/internal/blob"
	"github.com/reciclo/broker/internal/deal"
	"github.com/reciclo/broker/internal/user"
)

// Handlers provides the HTTP handlers of the JSON API.
type Handlers struct {
	deals *deal.Service
	users *user.Service
	blobs *blob.Client
}

// New creates a new handlers instance. The blob client may be nil when
// attachment storage is not configured; attachment routes then report 503.
func New(deals *deal.Service, users *user.Service, blobs *blob.Client) *Handlers {
	return &Handlers{
		deals: deals,
		users: users,
		blobs: blobs,
	}
}

// Routes mounts the full API.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/users", h.RegisterUser)
	r.Get("/users/{id}", h.GetUser)

	r.Group(func(r chi.Router) {
		r.Use(h.withActor)

		r.Post("/users/{id}/changes", h.RequestProfileChange)

		r.Post("/requirements", h.CreateRequirement)
		r.Get("/requirements", h.ListRequirements)
		r.Get("/requirements/{id}", h.GetDeal)
		r.Get("/requirements/{id}/report", h.RequirementReport)
		r.Post("/requirements/{id}/confirm", h.ConfirmRequirement)
		r.Post("/requirements/{id}/cancel", h.CancelRequirement)
		r.Post("/requirements/{id}/edits", h.RequestRequirementEdit)
		r.Post("/requirements/{id}/edits/decision", h.DecideAdminRequirementEdit)
		r.Post("/requirements/{id}/deletion-request", h.RequestRequirementDeletion)
		r.Post("/requirements/{id}/documents/{clause}", h.UploadRequirementDoc)

		r.Post("/requirements/{id}/offers", h.SubmitOffer)
		r.Get("/offers/{id}", h.GetOffer)
		r.Get("/offers/{id}/report", h.OfferReport)
		r.Post("/offers/{id}/confirm", h.ConfirmOffer)
		r.Post("/offers/{id}/approve", h.ApproveOffer)
		r.Post("/offers/{id}/reject", h.RejectOffer)
		r.Post("/offers/{id}/reply", h.ReplyToAdmin)
		r.Put("/offers/{id}", h.ResubmitOffer)
		r.Post("/offers/{id}/edits/decision", h.DecideAdminOfferEdit)
		r.Post("/offers/{id}/photos", h.UploadOfferPhoto)

		r.Get("/attachments", h.DownloadAttachment)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Post("/requirements", h.CreateRequirementOnBehalf)
			r.Post("/requirements/{id}/approve", h.ApproveRequirement)
			r.Post("/requirements/{id}/reject", h.RejectRequirement)
			r.Post("/requirements/{id}/edits", h.ProposeRequirementEdit)
			r.Post("/requirements/{id}/edits/decision", h.DecideRequirementEdit)
			r.Post("/requirements/{id}/deletion/decision", h.DecideRequirementDeletion)
			r.Post("/requirements/{id}/quantity-increase/decision", h.DecideQuantityIncrease)
			r.Post("/requirements/{id}/force-status", h.ForceRequirementStatus)
			r.Post("/requirements/{id}/hide", h.HideRequirement)

			r.Post("/offers", h.CreateOfferOnBehalf)
			r.Post("/offers/{id}/approve", h.ApproveOfferModeration)
			r.Post("/offers/{id}/reject", h.RejectOfferModeration)
			r.Post("/offers/{id}/question", h.AskSeller)
			r.Post("/offers/{id}/edits", h.ProposeOfferEdit)
			r.Post("/offers/{id}/deletion/decision", h.DecideOfferDeletion)
			r.Post("/offers/{id}/force-status", h.ForceOfferStatus)
			r.Post("/offers/{id}/hide", h.HideOffer)

			r.Get("/stale", h.ListStale)
			r.Get("/profile-changes", h.ListProfileChanges)
			r.Post("/users/{id}/changes/{changeID}/decision", h.DecideProfileChange)
		})
	})

	return r
}

type ctxKey int

const actorKey ctxKey = 0

// withActor resolves X-Actor-ID to a registered user and stores the actor
// on the request context. Requests without a resolvable actor are refused.
func (h *Handlers) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := r.Header.Get("X-Actor-ID")
		if actorID == "" {
			writeErrorStatus(w, http.StatusUnauthorized, "X-Actor-ID header required")
			return
		}
		u, err := h.users.Get(r.Context(), actorID)
		if err != nil {
			if errors.Is(err, deal.ErrNotFound) {
				writeErrorStatus(w, http.StatusUnauthorized, "unknown actor")
				return
			}
			writeError(w, err)
			return
		}
		actor := deal.Actor{ID: u.ID, Role: deal.Role(u.Role)}
		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin gates the moderation routes.
func (h *Handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor(r).Role != deal.RoleAdmin {
			writeErrorStatus(w, http.StatusForbidden, "moderation requires an admin actor")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actor(r *http.Request) deal.Actor {
	a, _ := r.Context().Value(actorKey).(deal.Actor)
	return a
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", deal.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, deal.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, deal.ErrIllegalTransition), errors.Is(err, deal.ErrConsistency):
		status = http.StatusConflict
	case errors.Is(err, deal.ErrReferential):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, deal.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, deal.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeErrorStatus(w, status, "internal error")
		return
	}
	writeErrorStatus(w, status, err.Error())
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
