package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reciclo/broker/internal/deal"
	"github.com/reciclo/broker/internal/report"
)

// SubmitOffer handles POST /requirements/{id}/offers.
func (h *Handlers) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	var in deal.OfferInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.deals.SubmitOffer(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetOffer handles GET /offers/{id}.
func (h *Handlers) GetOffer(w http.ResponseWriter, r *http.Request) {
	o, err := h.deals.ViewOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// OfferReport handles GET /offers/{id}/report: the plain-text dossier with
// redacted party names.
func (h *Handlers) OfferReport(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "id")
	o, err := h.deals.ViewOffer(r.Context(), offerID)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.ViewDeal(r.Context(), o.RequirementID)
	if err != nil {
		writeError(w, err)
		return
	}
	buyer := h.resolveParty(r, d.Requirement.BuyerID)
	seller := h.resolveParty(r, o.SellerID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(report.OfferDossier(d, o, buyer, seller)))
}

// ConfirmOffer handles POST /offers/{id}/confirm.
func (h *Handlers) ConfirmOffer(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.ConfirmOffer(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// ApproveOffer handles POST /offers/{id}/approve, the buyer's acceptance.
// The response carries the whole aggregate so the caller sees whether the
// approval committed directly or opened a quantity increase.
func (h *Handlers) ApproveOffer(w http.ResponseWriter, r *http.Request) {
	d, err := h.deals.ApproveOffer(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// RejectOffer handles POST /offers/{id}/reject, the buyer's refusal.
func (h *Handlers) RejectOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.RejectOffer(r.Context(), actor(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// ReplyToAdmin handles POST /offers/{id}/reply.
func (h *Handlers) ReplyToAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  deal.SellerAction `json:"action"`
		Message string            `json:"message"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.ReplyToAdmin(r.Context(), actor(r), chi.URLParam(r, "id"), req.Action, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// ResubmitOffer handles PUT /offers/{id}: content replacement followed by
// re-moderation.
func (h *Handlers) ResubmitOffer(w http.ResponseWriter, r *http.Request) {
	var in deal.OfferInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.ResubmitOffer(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}

// DecideAdminOfferEdit handles POST /offers/{id}/edits/decision, the
// seller's ruling on an admin-proposed edit.
func (h *Handlers) DecideAdminOfferEdit(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.deals.DecideAdminOfferEdit(r.Context(), actor(r), chi.URLParam(r, "id"), req.Approve)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDealResponse(d))
}
