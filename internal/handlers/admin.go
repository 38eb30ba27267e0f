package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reciclo/broker/internal/deal"
	"github.com/reciclo/broker/internal/user"
)

// Moderation gateway routes. The admin role is enforced twice: by the
// requireAdmin middleware and again inside the deal service.

// CreateRequirementOnBehalf handles POST /admin/requirements.
func (h *Handlers) CreateRequirementOnBehalf(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerID string                `json:"buyerId"`
		Input   deal.RequirementInput `json:"input"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.deals.CreateRequirementOnBehalf(r.Context(), actor(r), req.BuyerID, req.Input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ApproveRequirement handles POST /admin/requirements/{id}/approve.
func (h *Handlers) ApproveRequirement(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.ApproveRequirement(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// RejectRequirement handles POST /admin/requirements/{id}/reject.
func (h *Handlers) RejectRequirement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.RejectRequirement(r.Context(), actor(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// ProposeRequirementEdit handles POST /admin/requirements/{id}/edits.
func (h *Handlers) ProposeRequirementEdit(w http.ResponseWriter, r *http.Request) {
	var edit deal.RequirementEdit
	if err := decode(r, &edit); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.ProposeRequirementEdit(r.Context(), actor(r), chi.URLParam(r, "id"), edit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// DecideRequirementEdit handles POST /admin/requirements/{id}/edits/decision,
// the admin ruling on an owner-initiated edit.
func (h *Handlers) DecideRequirementEdit(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.DecideRequirementEdit(r.Context(), actor(r), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// DecideRequirementDeletion handles POST /admin/requirements/{id}/deletion/decision.
func (h *Handlers) DecideRequirementDeletion(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.DecideRequirementDeletion(r.Context(), actor(r), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// DecideQuantityIncrease handles POST /admin/requirements/{id}/quantity-increase/decision.
func (h *Handlers) DecideQuantityIncrease(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.DecideQuantityIncrease(r.Context(), actor(r), chi.URLParam(r, "id"), req.Approve, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// ForceRequirementStatus handles POST /admin/requirements/{id}/force-status.
func (h *Handlers) ForceRequirementStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status deal.RequirementStatus `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.ForceRequirementStatus(r.Context(), actor(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// HideRequirement handles POST /admin/requirements/{id}/hide.
func (h *Handlers) HideRequirement(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.HideRequirement(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// CreateOfferOnBehalf handles POST /admin/offers.
func (h *Handlers) CreateOfferOnBehalf(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellerID      string          `json:"sellerId"`
		RequirementID string          `json:"requirementId"`
		Input         deal.OfferInput `json:"input"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.deals.CreateOfferOnBehalf(r.Context(), actor(r), req.SellerID, req.RequirementID, req.Input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ApproveOfferModeration handles POST /admin/offers/{id}/approve.
func (h *Handlers) ApproveOfferModeration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AllowExpiredWindow bool `json:"allowExpiredWindow"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.ApproveOfferModeration(r.Context(), actor(r), chi.URLParam(r, "id"), req.AllowExpiredWindow)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// RejectOfferModeration handles POST /admin/offers/{id}/reject.
func (h *Handlers) RejectOfferModeration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.RejectOfferModeration(r.Context(), actor(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// AskSeller handles POST /admin/offers/{id}/question.
func (h *Handlers) AskSeller(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.AskSeller(r.Context(), actor(r), chi.URLParam(r, "id"), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// ProposeOfferEdit handles POST /admin/offers/{id}/edits.
func (h *Handlers) ProposeOfferEdit(w http.ResponseWriter, r *http.Request) {
	var edit deal.OfferEdit
	if err := decode(r, &edit); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.ProposeOfferEdit(r.Context(), actor(r), chi.URLParam(r, "id"), edit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// DecideOfferDeletion handles POST /admin/offers/{id}/deletion/decision.
func (h *Handlers) DecideOfferDeletion(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.DecideOfferDeletion(r.Context(), actor(r), chi.URLParam(r, "id"), req.Approve, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// ForceOfferStatus handles POST /admin/offers/{id}/force-status.
func (h *Handlers) ForceOfferStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status deal.OfferStatus `json:"status"`
		Reason string           `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.ForceOfferStatus(r.Context(), actor(r), chi.URLParam(r, "id"), req.Status, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// HideOffer handles POST /admin/offers/{id}/hide.
func (h *Handlers) HideOffer(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.HideOffer(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// ListStale handles GET /admin/stale?hours=, defaulting to 72 hours.
func (h *Handlers) ListStale(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
	if hours <= 0 {
		hours = 72
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	out, err := h.deals.ListStaleReviews(r.Context(), actor(r), cutoff)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListProfileChanges handles GET /admin/profile-changes.
func (h *Handlers) ListProfileChanges(w http.ResponseWriter, r *http.Request) {
	out, err := h.users.ListOpenChanges(r.Context(), user.Role(actor(r).Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DecideProfileChange handles POST /admin/users/{id}/changes/{changeID}/decision.
func (h *Handlers) DecideProfileChange(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := h.users.DecideChange(r.Context(), user.Role(actor(r).Role),
		chi.URLParam(r, "id"), chi.URLParam(r, "changeID"), req.Approve)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
