package handlers

import (
	"net/http"

	"beatspace/mediation"
	"beatspace/models"
	"beatspace/utils"
)

// ListAssets returns the caller's view of the inventory. ?status= filters by
// asset status.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var statuses []models.AssetStatus
	for _, s := range queryList(r, "status") {
		statuses = append(statuses, models.AssetStatus(s))
	}
	assets, err := h.svc.ListAssets(r.Context(), p, statuses)
	respond(w, r, assets, err)
}

func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.AssetInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	asset, err := h.svc.CreateAsset(r.Context(), p, in)
	respond(w, r, asset, err)
}

func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	asset, err := h.svc.GetAsset(r.Context(), p, pathID(r))
	respond(w, r, asset, err)
}

func (h *Handler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.AssetUpdate
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	asset, err := h.svc.UpdateAsset(r.Context(), p, pathID(r), in)
	respond(w, r, asset, err)
}

func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	err := h.svc.DeleteAsset(r.Context(), p, pathID(r))
	deleted(w, r, "Asset deleted", err)
}

// UpdateCreative sets creative tags and timeline on an asset the buyer holds.
func (h *Handler) UpdateCreative(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.CreativeInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	asset, err := h.svc.UpdateCreative(r.Context(), p, pathID(r), in)
	respond(w, r, asset, err)
}

func (h *Handler) SetAssetStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in mediation.AssetStatusInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}
	asset, err := h.svc.SetAssetStatus(r.Context(), p, pathID(r), in.Status)
	respond(w, r, asset, err)
}

// LiveAssets is the buyer's booked inventory joined with the contract terms.
func (h *Handler) LiveAssets(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	assets, err := h.svc.BuyerLiveAssets(r.Context(), p)
	respond(w, r, assets, err)
}

// PublicAssets is the anonymous catalog without ownership fields.
func (h *Handler) PublicAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.svc.PublicAssets(r.Context())
	respond(w, r, assets, err)
}

func (h *Handler) PublicStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	respond(w, r, stats, err)
}
