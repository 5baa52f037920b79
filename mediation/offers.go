package mediation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/authz"
	"beatspace/database"
	"beatspace/lifecycle"
	"beatspace/models"
	"beatspace/store"
	"beatspace/websocket"
)

// RequestFields are the buyer-settable fields of an offer request.
type RequestFields struct {
	AssetID             string                `json:"asset_id"`
	CampaignName        string                `json:"campaign_name"`
	CampaignType        models.CampaignType   `json:"campaign_type"`
	ExistingCampaignID  *string               `json:"existing_campaign_id"`
	ContractDuration    string                `json:"contract_duration"`
	EstimatedBudget     *float64              `json:"estimated_budget"`
	ServiceBundles      models.ServiceBundles `json:"service_bundles"`
	Timeline            string                `json:"timeline"`
	SpecialRequirements string                `json:"special_requirements"`
	Notes               string                `json:"notes"`
	AssetStartDate      *time.Time            `json:"asset_start_date"`
	AssetExpirationDate *time.Time            `json:"asset_expiration_date"`
}

func (f *RequestFields) validate() error {
	f.CampaignName = strings.TrimSpace(f.CampaignName)
	f.ContractDuration = strings.TrimSpace(f.ContractDuration)
	switch {
	case strings.TrimSpace(f.AssetID) == "":
		return apperr.New(apperr.KindValidation, "asset_id is required")
	case f.CampaignName == "":
		return apperr.New(apperr.KindValidation, "campaign_name is required")
	case f.ContractDuration == "":
		return apperr.New(apperr.KindValidation, "contract_duration is required")
	case f.EstimatedBudget != nil && *f.EstimatedBudget < 0:
		return apperr.New(apperr.KindValidation, "estimated_budget must not be negative")
	case f.AssetStartDate != nil && f.AssetExpirationDate != nil && f.AssetExpirationDate.Before(*f.AssetStartDate):
		return apperr.New(apperr.KindValidation, "asset_expiration_date must not be before asset_start_date")
	}
	switch f.CampaignType {
	case models.CampaignTypeNew:
		f.ExistingCampaignID = nil
	case models.CampaignTypeExisting:
		if deref(f.ExistingCampaignID) == "" {
			return apperr.New(apperr.KindValidation, "existing_campaign_id is required for an existing campaign")
		}
	default:
		return apperr.New(apperr.KindValidation, "campaign_type must be new or existing")
	}
	return nil
}

// checkCampaignRef ensures a referenced campaign belongs to the buyer and can
// still take bookings.
func (s *Service) checkCampaignRef(ctx context.Context, buyer models.Principal, f RequestFields) error {
	campaignID := deref(f.ExistingCampaignID)
	if campaignID == "" {
		return nil
	}
	campaign, err := s.store.Campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.BuyerID != buyer.ID {
		return apperr.ErrNotOwner
	}
	if !lifecycle.AcceptsBindings(campaign.Status) {
		return apperr.New(apperr.KindInvalidTransition, "campaign is completed")
	}
	return nil
}

func (f RequestFields) set(now time.Time) bson.M {
	return bson.M{
		"campaign_name":         f.CampaignName,
		"campaign_type":         string(f.CampaignType),
		"existing_campaign_id":  f.ExistingCampaignID,
		"contract_duration":     f.ContractDuration,
		"estimated_budget":      f.EstimatedBudget,
		"service_bundles":       f.ServiceBundles,
		"timeline":              f.Timeline,
		"special_requirements":  f.SpecialRequirements,
		"notes":                 f.Notes,
		"asset_start_date":      f.AssetStartDate,
		"asset_expiration_date": f.AssetExpirationDate,
		"updated_at":            now,
	}
}

// SubmitRequest opens an offer request on a free asset. The asset is claimed
// with a conditional write before the request exists, so of two concurrent
// submissions exactly one wins.
func (s *Service) SubmitRequest(ctx context.Context, buyer models.Principal, in RequestFields) (*models.OfferRequest, error) {
	if err := authz.Allow(buyer, authz.CreateOffer, authz.Target{}); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	asset, err := s.store.Assets.Get(ctx, in.AssetID)
	if err != nil {
		return nil, err
	}
	if asset.Status != models.AssetAvailable {
		return nil, apperr.ErrAssetNotFree
	}
	if err := s.checkCampaignRef(ctx, buyer, in); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	rb := s.newRollback("submit_request")
	if _, err := s.holdAsset(ctx, asset.ID, rb); err != nil {
		return nil, s.fail(ctx, rb, err)
	}

	now := s.timestamp()
	offer := &models.OfferRequest{
		ID:                  s.newID(),
		BuyerID:             buyer.ID,
		BuyerName:           buyer.Name,
		BuyerEmail:          buyer.Email,
		AssetID:             asset.ID,
		AssetName:           asset.Name,
		CampaignName:        in.CampaignName,
		CampaignType:        in.CampaignType,
		ExistingCampaignID:  in.ExistingCampaignID,
		ContractDuration:    in.ContractDuration,
		EstimatedBudget:     in.EstimatedBudget,
		ServiceBundles:      in.ServiceBundles,
		Timeline:            in.Timeline,
		SpecialRequirements: in.SpecialRequirements,
		Notes:               in.Notes,
		AssetStartDate:      in.AssetStartDate,
		AssetExpirationDate: in.AssetExpirationDate,
		Status:              models.OfferPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Offers.Insert(ctx, offer); err != nil {
		return nil, s.fail(ctx, rb, err)
	}
	rb.add("offer_request", offer.ID, "delete", func(ctx context.Context) error {
		return s.store.Offers.Delete(ctx, offer.ID, bson.M{"status": string(models.OfferPending)})
	})
	if err := s.verifyAsset(ctx, asset.ID); err != nil {
		return nil, s.fail(ctx, rb, err)
	}

	s.audit(ctx, buyer, "offer_submitted", "offer_request", offer.ID, "", string(offer.Status), map[string]interface{}{"asset_id": asset.ID})
	s.toAdmins(websocket.EventNewOfferRequest, map[string]interface{}{
		"offer_id":              offer.ID,
		"asset_id":              asset.ID,
		"asset_name":            asset.Name,
		"buyer_id":              buyer.ID,
		"buyer_name":            buyer.Name,
		"buyer_email":           buyer.Email,
		"campaign_name":         offer.CampaignName,
		"asset_start_date":      offer.AssetStartDate,
		"asset_expiration_date": offer.AssetExpirationDate,
	})
	s.logger.Info("offer request submitted", "event", "offer_submitted", "offer_id", offer.ID, "asset_id", asset.ID, "buyer_id", buyer.ID)
	return offer, nil
}

// UpdateRequest overwrites the buyer-settable fields of a pending request.
// The asset cannot be changed.
func (s *Service) UpdateRequest(ctx context.Context, buyer models.Principal, id string, in RequestFields) (*models.OfferRequest, error) {
	offer, err := s.store.Offers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Allow(buyer, authz.EditOffer, authz.Target{BuyerID: offer.BuyerID}); err != nil {
		return nil, err
	}
	if err := lifecycle.CanEdit(offer.Status); err != nil {
		return nil, err
	}
	if in.AssetID == "" {
		in.AssetID = offer.AssetID
	}
	if in.AssetID != offer.AssetID {
		return nil, apperr.New(apperr.KindValidation, "asset_id cannot be changed")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkCampaignRef(ctx, buyer, in); err != nil {
		return nil, err
	}

	update := database.Update{Set: in.set(s.timestamp())}
	updated, err := s.store.Offers.Transition(ctx, id, bson.M{"status": string(models.OfferPending), "buyer_id": buyer.ID}, update)
	if errors.Is(err, store.ErrNoMatch) {
		if _, err := s.store.Offers.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperr.ErrNotEditable
	}
	if err != nil {
		return nil, err
	}
	s.audit(ctx, buyer, "offer_updated", "offer_request", id, string(offer.Status), string(updated.Status), nil)
	return updated, nil
}

// DeleteRequest withdraws a pending request and frees its asset.
func (s *Service) DeleteRequest(ctx context.Context, buyer models.Principal, id string) error {
	offer, err := s.store.Offers.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Allow(buyer, authz.EditOffer, authz.Target{BuyerID: offer.BuyerID}); err != nil {
		return err
	}
	if err := lifecycle.CanEdit(offer.Status); err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	rb := s.newRollback("delete_request")
	if _, err := s.releaseHeldAsset(ctx, offer, rb); err != nil && !errors.Is(err, apperr.ErrAssetNotFound) {
		return s.fail(ctx, rb, err)
	}
	err = s.store.Offers.Delete(ctx, id, bson.M{"status": string(models.OfferPending), "buyer_id": buyer.ID})
	if errors.Is(err, store.ErrNoMatch) {
		err = s.staleOrMissing(ctx, id)
	}
	if err != nil {
		return s.fail(ctx, rb, err)
	}

	s.audit(ctx, buyer, "offer_deleted", "offer_request", id, string(offer.Status), "", map[string]interface{}{"asset_id": offer.AssetID})
	s.logger.Info("offer request deleted", "event", "offer_deleted", "offer_id", id, "asset_id", offer.AssetID)
	return nil
}

// GetRequest returns a request visible to the principal.
func (s *Service) GetRequest(ctx context.Context, p models.Principal, id string) (*models.OfferRequest, error) {
	offer, err := s.store.Offers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	target := authz.Target{BuyerID: offer.BuyerID}
	if p.IsSeller() {
		asset, err := s.store.Assets.Get(ctx, offer.AssetID)
		if err != nil && !errors.Is(err, apperr.ErrAssetNotFound) {
			return nil, err
		}
		if asset != nil {
			target.SellerID = asset.SellerID
		}
	}
	if err := authz.Allow(p, authz.ViewOffer, target); err != nil {
		return nil, err
	}
	if p.IsSeller() {
		scrubBuyer(offer)
	}
	return offer, nil
}

// ListRequests scopes the request list by role: buyers see their own,
// sellers those on their assets, admins everything.
func (s *Service) ListRequests(ctx context.Context, p models.Principal) ([]models.OfferRequest, error) {
	if err := authz.Allow(p, authz.ListOffers, authz.Target{}); err != nil {
		return nil, err
	}
	switch p.Role {
	case models.RoleAdmin:
		return s.store.Offers.List(ctx, store.OfferFilter{})
	case models.RoleBuyer:
		return s.store.Offers.List(ctx, store.OfferFilter{BuyerID: p.ID})
	case models.RoleSeller:
		assets, err := s.store.Assets.List(ctx, store.AssetFilter{SellerID: p.ID})
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(assets))
		for _, asset := range assets {
			ids = append(ids, asset.ID)
		}
		offers, err := s.store.Offers.List(ctx, store.OfferFilter{AssetIDs: ids})
		if err != nil {
			return nil, err
		}
		for i := range offers {
			scrubBuyer(&offers[i])
		}
		return offers, nil
	}
	return nil, apperr.ErrForbidden
}

// scrubBuyer hides buyer identity from sellers; the admin mediates every contact.
func scrubBuyer(offer *models.OfferRequest) {
	offer.BuyerEmail = ""
	offer.BuyerName = ""
}
