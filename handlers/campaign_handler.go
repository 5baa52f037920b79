package handlers

import (
	"net/http"

	"beatspace/mediation"
	"beatspace/utils"
)

// ListCampaigns returns the caller's campaigns. Admins see every campaign,
// or one buyer's with ?buyer_id=.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	campaigns, err := h.svc.ListCampaigns(r.Context(), p, r.URL.Query().Get("buyer_id"))
	respond(w, r, campaigns, err)
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.CampaignInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	campaign, err := h.svc.CreateCampaign(r.Context(), p, in)
	respond(w, r, campaign, err)
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	campaign, err := h.svc.GetCampaign(r.Context(), p, pathID(r))
	respond(w, r, campaign, err)
}

func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.CampaignUpdate
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	campaign, err := h.svc.UpdateCampaign(r.Context(), p, pathID(r), in)
	respond(w, r, campaign, err)
}

func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	err := h.svc.DeleteCampaign(r.Context(), p, pathID(r))
	deleted(w, r, "Campaign deleted", err)
}

// SetCampaignStatus applies a manual campaign transition. Completing a live
// campaign releases its bound assets.
func (h *Handler) SetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.CampaignStatusInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	campaign, err := h.svc.SetCampaignStatus(r.Context(), p, pathID(r), in.Status)
	respond(w, r, campaign, err)
}
