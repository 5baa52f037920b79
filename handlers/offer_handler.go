package handlers

import (
	"net/http"

	"beatspace/mediation"
	"beatspace/models"
	"beatspace/utils"
)

// SubmitRequest places a buyer's request for quote on an available asset.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.RequestFields
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	offer, err := h.svc.SubmitRequest(r.Context(), p, in)
	respond(w, r, offer, err)
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	offers, err := h.svc.ListRequests(r.Context(), p)
	respond(w, r, offers, err)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	offer, err := h.svc.GetRequest(r.Context(), p, pathID(r))
	respond(w, r, offer, err)
}

func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.RequestFields
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	offer, err := h.svc.UpdateRequest(r.Context(), p, pathID(r), in)
	respond(w, r, offer, err)
}

func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	err := h.svc.DeleteRequest(r.Context(), p, pathID(r))
	deleted(w, r, "Offer request deleted", err)
}

// RespondToQuote records the buyer's accept, reject or modify decision.
func (h *Handler) RespondToQuote(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.RespondInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	offer, err := h.svc.RespondToQuote(r.Context(), p, pathID(r), in)
	respond(w, r, offer, err)
}

// AdminQueue is the admin's request list joined with buyer and asset
// summaries. ?status= narrows it to the given statuses.
func (h *Handler) AdminQueue(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var statuses []models.OfferStatus
	for _, s := range queryList(r, "status") {
		statuses = append(statuses, models.OfferStatus(s))
	}
	queue, err := h.svc.AdminQueue(r.Context(), p, statuses)
	respond(w, r, queue, err)
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.QuoteInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	offer, err := h.svc.Quote(r.Context(), p, pathID(r), in)
	respond(w, r, offer, err)
}

func (h *Handler) SetRequestStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.StatusInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	offer, err := h.svc.SetRequestStatus(r.Context(), p, pathID(r), in)
	respond(w, r, offer, err)
}
