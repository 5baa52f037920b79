package mediation

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/database"
	"beatspace/lifecycle"
	"beatspace/models"
	"beatspace/store"
)

var buyerFields = []string{"buyer_id", "buyer_name", "next_available_date", "offer_id"}

func statusIn[T ~string](statuses []T) bson.M {
	list := make([]string, 0, len(statuses))
	for _, s := range statuses {
		list = append(list, string(s))
	}
	return bson.M{"$in": list}
}

// bookedBy reports whether the request's booking is the one the asset carries.
func bookedBy(asset *models.Asset, offer *models.OfferRequest) bool {
	return asset.Status.IsBuyerHeld() && deref(asset.BuyerID) == offer.BuyerID && deref(asset.OfferID) == offer.ID
}

// sameBooking matches the asset only while it still carries the booking it
// had when read.
func sameBooking(asset *models.Asset) bson.M {
	cond := bson.M{"status": string(asset.Status), "buyer_id": deref(asset.BuyerID)}
	if asset.OfferID != nil {
		cond["offer_id"] = *asset.OfferID
	} else {
		cond["offer_id"] = bson.M{"$exists": false}
	}
	return cond
}

// staleOrMissing explains a failed conditional write on an offer request.
func (s *Service) staleOrMissing(ctx context.Context, offerID string) error {
	if _, err := s.store.Offers.Get(ctx, offerID); err != nil {
		return err
	}
	return apperr.ErrStaleState
}

// inconsistentAsset is returned when an active request's asset is not in the
// status the lifecycle requires. A concurrent change of the request is a
// conflict; anything else is a broken invariant.
func (s *Service) inconsistentAsset(ctx context.Context, offer *models.OfferRequest, asset *models.Asset) error {
	current, err := s.store.Offers.Get(ctx, offer.ID)
	if err != nil {
		return err
	}
	if current.Status != offer.Status {
		return apperr.ErrStaleState
	}
	s.logger.Error("asset out of step with offer request",
		"event", "invariant_violation",
		"offer_id", offer.ID,
		"offer_status", offer.Status,
		"asset_id", asset.ID,
		"asset_status", asset.Status,
	)
	return apperr.New(apperr.KindInvariantViolation, "asset status does not match its offer request")
}

// holdAsset claims a free asset for an offer: Available -> Pending Offer.
func (s *Service) holdAsset(ctx context.Context, assetID string, rb *rollback) (*models.Asset, error) {
	before, err := s.store.Assets.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if before.Status != models.AssetAvailable {
		return nil, apperr.ErrAssetNotFree
	}
	if err := lifecycle.CheckAsset(before.Status, models.AssetPendingOffer); err != nil {
		return nil, err
	}
	after, err := s.store.Assets.Transition(ctx, assetID,
		bson.M{"status": string(models.AssetAvailable)},
		database.Update{Set: bson.M{"status": string(models.AssetPendingOffer), "updated_at": s.timestamp()}},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return nil, apperr.ErrAssetNotFree
	}
	if err != nil {
		return nil, err
	}
	s.undoAsset(rb, before, after, "Pending Offer -> Available")
	return after, nil
}

// negotiateAsset moves the asset of an active request to Negotiating.
func (s *Service) negotiateAsset(ctx context.Context, offer *models.OfferRequest, rb *rollback) (*models.Asset, error) {
	before, err := s.store.Assets.Get(ctx, offer.AssetID)
	if err != nil {
		return nil, err
	}
	switch before.Status {
	case models.AssetNegotiating:
		return before, nil
	case models.AssetPendingOffer:
	default:
		return nil, s.inconsistentAsset(ctx, offer, before)
	}
	if err := lifecycle.CheckAsset(before.Status, models.AssetNegotiating); err != nil {
		return nil, err
	}
	after, err := s.store.Assets.Transition(ctx, offer.AssetID,
		bson.M{"status": string(models.AssetPendingOffer)},
		database.Update{Set: bson.M{"status": string(models.AssetNegotiating), "updated_at": s.timestamp()}},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return nil, apperr.ErrStaleState
	}
	if err != nil {
		return nil, err
	}
	s.undoAsset(rb, before, after, "Negotiating -> Pending Offer")
	return after, nil
}

// releaseHeldAsset frees the asset of an active request: Pending Offer or
// Negotiating -> Available.
func (s *Service) releaseHeldAsset(ctx context.Context, offer *models.OfferRequest, rb *rollback) (*models.Asset, error) {
	before, err := s.store.Assets.Get(ctx, offer.AssetID)
	if err != nil {
		return nil, err
	}
	if !before.Status.IsOfferHold() {
		return nil, s.inconsistentAsset(ctx, offer, before)
	}
	if err := lifecycle.CheckAsset(before.Status, models.AssetAvailable); err != nil {
		return nil, err
	}
	after, err := s.store.Assets.Transition(ctx, offer.AssetID,
		bson.M{"status": string(before.Status)},
		database.Update{Set: bson.M{"status": string(models.AssetAvailable), "updated_at": s.timestamp()}, Unset: buyerFields},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return nil, apperr.ErrStaleState
	}
	if err != nil {
		return nil, err
	}
	s.undoAsset(rb, before, after, string(before.Status)+" -> Available")
	return after, nil
}

// bookSource names the asset states a booking may start from.
type bookSource int

const (
	// bookFromHold books the asset of an active request.
	bookFromHold bookSource = iota
	// bookFromBooking re-applies a booking: the asset still carries the
	// request's booking, or was released and is free again.
	bookFromBooking
	// bookFromFree books an asset with no active request.
	bookFromFree
)

// condition matches the asset read as before, as long as it is still in
// the state the booking was admitted from.
func (src bookSource) condition(before *models.Asset) bson.M {
	switch {
	case src == bookFromHold:
		return bson.M{"status": statusIn(models.OfferHoldStatuses)}
	case src == bookFromBooking && before.Status.IsBuyerHeld():
		return sameBooking(before)
	default:
		return bson.M{"status": string(models.AssetAvailable)}
	}
}

func (src bookSource) admits(asset *models.Asset, offer *models.OfferRequest) bool {
	switch src {
	case bookFromHold:
		return asset.Status.IsOfferHold()
	case bookFromBooking:
		return asset.Status == models.AssetAvailable || bookedBy(asset, offer)
	default:
		return asset.Status == models.AssetAvailable
	}
}

// bookAsset makes the asset buyer-held (Live) for the request's buyer until end.
func (s *Service) bookAsset(ctx context.Context, offer *models.OfferRequest, end time.Time, src bookSource, rb *rollback) (*models.Asset, error) {
	before, err := s.store.Assets.Get(ctx, offer.AssetID)
	if err != nil {
		return nil, err
	}
	if !src.admits(before, offer) {
		if src == bookFromHold {
			return nil, s.inconsistentAsset(ctx, offer, before)
		}
		return nil, apperr.ErrAssetNotFree
	}
	if err := lifecycle.CheckAsset(before.Status, models.AssetLive); err != nil {
		return nil, err
	}
	after, err := s.store.Assets.Transition(ctx, offer.AssetID, src.condition(before), database.Update{Set: bson.M{
		"status":              string(models.AssetLive),
		"buyer_id":            offer.BuyerID,
		"buyer_name":          offer.BuyerName,
		"next_available_date": end,
		"offer_id":            offer.ID,
		"updated_at":          s.timestamp(),
	}})
	if errors.Is(err, store.ErrNoMatch) {
		return nil, apperr.ErrStaleState
	}
	if err != nil {
		return nil, err
	}
	s.undoAsset(rb, before, after, "booking -> "+string(before.Status))
	if err := lifecycle.CheckBookingCoherence(*after); err != nil {
		return nil, err
	}
	return after, nil
}

// releaseBookedAsset clears the request's booking and moves the asset to
// target. It reports false, writing nothing, when the asset no longer carries
// that booking: it was released, or rebooked by another request.
func (s *Service) releaseBookedAsset(ctx context.Context, offer *models.OfferRequest, target models.AssetStatus, rb *rollback) (*models.Asset, bool, error) {
	before, err := s.store.Assets.Get(ctx, offer.AssetID)
	if err != nil {
		return nil, false, err
	}
	if !bookedBy(before, offer) {
		return before, false, nil
	}
	if err := lifecycle.CheckAsset(before.Status, target); err != nil {
		return nil, false, err
	}
	after, err := s.store.Assets.Transition(ctx, offer.AssetID, sameBooking(before),
		database.Update{Set: bson.M{"status": string(target), "updated_at": s.timestamp()}, Unset: buyerFields},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return nil, false, apperr.ErrStaleState
	}
	if err != nil {
		return nil, false, err
	}
	s.undoAsset(rb, before, after, "release -> "+string(before.Status))
	return after, true, nil
}

// attachToCampaign binds a booked asset to the request's campaign and turns a
// draft campaign live. Campaigns that are missing, foreign or completed are
// left alone.
func (s *Service) attachToCampaign(ctx context.Context, offer *models.OfferRequest, asset *models.Asset, start, end time.Time, rb *rollback) error {
	campaignID := deref(offer.ExistingCampaignID)
	if campaignID == "" {
		return nil
	}
	campaign, err := s.store.Campaigns.Get(ctx, campaignID)
	if errors.Is(err, apperr.ErrCampaignNotFound) {
		s.logger.Warn("campaign of approved request not found", "event", "campaign_attach_skipped", "offer_id", offer.ID, "campaign_id", campaignID)
		return nil
	}
	if err != nil {
		return err
	}
	if campaign.BuyerID != offer.BuyerID || !lifecycle.AcceptsBindings(campaign.Status) {
		s.logger.Warn("campaign does not accept the booking", "event", "campaign_attach_skipped",
			"offer_id", offer.ID, "campaign_id", campaignID, "campaign_status", campaign.Status)
		return nil
	}

	current := campaign
	if !campaign.HasAsset(asset.ID) {
		binding := models.CampaignAsset{
			AssetID:             asset.ID,
			AssetName:           asset.Name,
			AssetStartDate:      &start,
			AssetExpirationDate: &end,
		}
		after, err := s.store.Campaigns.Transition(ctx, campaignID,
			bson.M{"status": bson.M{"$ne": string(models.CampaignCompleted)}, "campaign_assets.asset_id": bson.M{"$ne": asset.ID}},
			database.Update{AddToSet: bson.M{"campaign_assets": binding}, Set: bson.M{"updated_at": s.timestamp()}},
		)
		switch {
		case errors.Is(err, store.ErrNoMatch):
			// Bound or completed concurrently; re-read below decides the status step.
			if current, err = s.store.Campaigns.Get(ctx, campaignID); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			s.undoCampaign(rb, current, after, "unbind asset "+asset.ID)
			current = after
		}
	}

	if current.Status != models.CampaignDraft {
		return s.verifyCampaign(ctx, campaignID)
	}
	after, err := s.store.Campaigns.Transition(ctx, campaignID,
		bson.M{"status": string(models.CampaignDraft)},
		database.Update{Set: bson.M{"status": string(models.CampaignLive), "updated_at": s.timestamp()}},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return nil
	}
	if err != nil {
		return err
	}
	s.undoCampaign(rb, current, after, "Live -> Draft")
	return s.verifyCampaign(ctx, campaignID)
}

// detachFromCampaign drops the binding of a released asset. A live campaign
// left without a buyer-held asset returns to Draft.
func (s *Service) detachFromCampaign(ctx context.Context, offer *models.OfferRequest, rb *rollback) error {
	campaignID := deref(offer.ExistingCampaignID)
	if campaignID == "" {
		return nil
	}
	campaign, err := s.store.Campaigns.Get(ctx, campaignID)
	if errors.Is(err, apperr.ErrCampaignNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !campaign.HasAsset(offer.AssetID) || campaign.Status == models.CampaignCompleted {
		return nil
	}

	after, err := s.store.Campaigns.Transition(ctx, campaignID,
		bson.M{"status": string(campaign.Status)},
		database.Update{Pull: bson.M{"campaign_assets": bson.M{"asset_id": offer.AssetID}}, Set: bson.M{"updated_at": s.timestamp()}},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return apperr.ErrStaleState
	}
	if err != nil {
		return err
	}
	s.undoCampaign(rb, campaign, after, "rebind asset "+offer.AssetID)

	if after.Status != models.CampaignLive {
		return s.verifyCampaign(ctx, campaignID)
	}
	held, err := s.heldBindings(ctx, after)
	if err != nil {
		return err
	}
	if held > 0 {
		return s.verifyCampaign(ctx, campaignID)
	}
	draft, err := s.store.Campaigns.Transition(ctx, campaignID,
		bson.M{"status": string(models.CampaignLive)},
		database.Update{Set: bson.M{"status": string(models.CampaignDraft), "updated_at": s.timestamp()}},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return apperr.ErrStaleState
	}
	if err != nil {
		return err
	}
	s.undoCampaign(rb, after, draft, "Draft -> Live")
	return s.verifyCampaign(ctx, campaignID)
}

// heldBindings counts the campaign's bound assets its buyer still holds.
func (s *Service) heldBindings(ctx context.Context, campaign *models.Campaign) (int, error) {
	held, err := s.heldAssets(ctx, campaign)
	return len(held), err
}

func (s *Service) heldAssets(ctx context.Context, campaign *models.Campaign) (map[string]bool, error) {
	held := map[string]bool{}
	if len(campaign.CampaignAssets) == 0 {
		return held, nil
	}
	ids := make([]string, 0, len(campaign.CampaignAssets))
	for _, binding := range campaign.CampaignAssets {
		ids = append(ids, binding.AssetID)
	}
	assets, err := s.store.Assets.List(ctx, store.AssetFilter{IDs: ids, BuyerID: campaign.BuyerID, Statuses: models.BuyerHeldStatuses})
	if err != nil {
		return nil, err
	}
	for _, asset := range assets {
		held[asset.ID] = true
	}
	return held, nil
}

// verifyAsset re-reads the asset after a verb's writes and checks the
// booking, window and single-active-offer invariants.
func (s *Service) verifyAsset(ctx context.Context, assetID string) error {
	asset, err := s.store.Assets.Get(ctx, assetID)
	if err != nil {
		return err
	}
	if err := lifecycle.CheckBookingCoherence(*asset); err != nil {
		return err
	}
	if asset.Status.IsBuyerHeld() {
		if err := s.verifyBookingOwner(ctx, asset); err != nil {
			return err
		}
	}
	active, err := s.store.Offers.Count(ctx, store.OfferFilter{AssetID: assetID, Statuses: models.ActiveOfferStatuses})
	if err != nil {
		return err
	}
	return lifecycle.CheckOfferHold(*asset, active)
}

func (s *Service) verifyBookingOwner(ctx context.Context, asset *models.Asset) error {
	if asset.OfferID == nil {
		return apperr.New(apperr.KindInvariantViolation, "booked asset "+asset.ID+" does not name its request")
	}
	offer, err := s.store.Offers.Get(ctx, *asset.OfferID)
	if errors.Is(err, apperr.ErrRequestNotFound) {
		return apperr.New(apperr.KindInvariantViolation, "booked asset "+asset.ID+" names a missing request")
	}
	if err != nil {
		return err
	}
	return lifecycle.CheckBookingOwner(*asset, *offer)
}

// verifyCampaign re-reads the campaign after a verb's writes and checks that
// a live campaign still has a bound asset its buyer holds.
func (s *Service) verifyCampaign(ctx context.Context, campaignID string) error {
	campaign, err := s.store.Campaigns.Get(ctx, campaignID)
	if errors.Is(err, apperr.ErrCampaignNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignLive {
		return nil
	}
	held, err := s.heldAssets(ctx, campaign)
	if err != nil {
		return err
	}
	return lifecycle.CheckCampaignLinkage(*campaign, func(assetID string) bool { return held[assetID] })
}

// fail compensates the verb's writes and logs invariant breaks.
func (s *Service) fail(ctx context.Context, rb *rollback, err error) error {
	if errors.Is(err, apperr.ErrInvariantViolation) {
		s.logger.Error("invariant violated, compensating", "event", "invariant_violation", "verb", rb.verb, "error", err)
	}
	rb.undo(ctx, err)
	return err
}
