// Package authz is the authorization matrix: a pure decision over the
// principal, the operation and the ownership of its target.
package authz

import (
	"beatspace/apperr"
	"beatspace/models"
)

type Operation int

const (
	ListOffers Operation = iota
	ViewOffer
	CreateOffer
	EditOffer
	RespondToQuote
	MediateOffer
	CreateCampaign
	ViewCampaign
	EditCampaign
	DeleteCampaign
	CreateAsset
	EditAsset
	UpdateCreative
	SetAssetStatus
	ViewLiveAssets
	UploadMedia
	ManageUsers
	ViewAudit
)

var operationNames = map[Operation]string{
	ListOffers:     "list_offers",
	ViewOffer:      "view_offer",
	CreateOffer:    "create_offer",
	EditOffer:      "edit_offer",
	RespondToQuote: "respond_to_quote",
	MediateOffer:   "mediate_offer",
	CreateCampaign: "create_campaign",
	ViewCampaign:   "view_campaign",
	EditCampaign:   "edit_campaign",
	DeleteCampaign: "delete_campaign",
	CreateAsset:    "create_asset",
	EditAsset:      "edit_asset",
	UpdateCreative: "update_creative",
	SetAssetStatus: "set_asset_status",
	ViewLiveAssets: "view_live_assets",
	UploadMedia:    "upload_media",
	ManageUsers:    "manage_users",
	ViewAudit:      "view_audit",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

// Target carries the ownership facts of the entity an operation acts on.
// BuyerID is the requesting buyer of an offer, the owner of a campaign or the
// buyer holding an asset; SellerID is the owner of the asset involved.
type Target struct {
	BuyerID  string
	SellerID string
}

// Allow returns nil when the principal may perform op on target, otherwise a
// Forbidden error.
func Allow(p models.Principal, op Operation, target Target) error {
	switch op {
	case ListOffers:
		return nil
	case ViewOffer:
		if p.IsAdmin() || p.IsBuyer() && target.BuyerID == p.ID || p.IsSeller() && target.SellerID == p.ID {
			return nil
		}
		return apperr.ErrNotOwner
	case CreateOffer:
		if !p.IsBuyer() {
			return apperr.ErrNotBuyer
		}
		return nil
	case EditOffer, RespondToQuote, UpdateCreative:
		if !p.IsBuyer() {
			return apperr.ErrNotBuyer
		}
		return buyerOwns(p, target)
	case ViewLiveAssets:
		if !p.IsBuyer() {
			return apperr.ErrNotBuyer
		}
		return nil
	case CreateCampaign:
		if p.IsAdmin() {
			return nil
		}
		if !p.IsBuyer() {
			return apperr.ErrForbidden
		}
		if target.BuyerID != "" && target.BuyerID != p.ID {
			return apperr.ErrNotOwner
		}
		return nil
	case ViewCampaign, EditCampaign, DeleteCampaign:
		if p.IsAdmin() {
			return nil
		}
		if !p.IsBuyer() {
			return apperr.ErrForbidden
		}
		return buyerOwns(p, target)
	case CreateAsset, EditAsset:
		if p.IsAdmin() {
			return nil
		}
		if !p.IsSeller() {
			return apperr.ErrForbidden
		}
		if target.SellerID != p.ID {
			return apperr.ErrNotOwner
		}
		return nil
	case UploadMedia:
		if p.IsAdmin() || p.IsSeller() {
			return nil
		}
		return apperr.ErrForbidden
	case MediateOffer, SetAssetStatus, ManageUsers, ViewAudit:
		if p.IsAdmin() {
			return nil
		}
		return apperr.ErrForbidden
	}
	return apperr.ErrForbidden
}

func buyerOwns(p models.Principal, target Target) error {
	if target.BuyerID == "" || target.BuyerID != p.ID {
		return apperr.ErrNotOwner
	}
	return nil
}
