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
)

// EventCampaignStatusChanged is pushed to the campaign's buyer and the admins.
const EventCampaignStatusChanged = "campaign_status_changed"

type CampaignInput struct {
	BuyerID     string     `json:"buyer_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Budget      *float64   `json:"budget"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// CampaignUpdate changes campaign metadata only; status and bindings move
// through the lifecycle.
type CampaignUpdate struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Budget      *float64   `json:"budget"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperr.New(apperr.KindValidation, "end_date must not be before start_date")
	}
	return nil
}

func (s *Service) CreateCampaign(ctx context.Context, p models.Principal, in CampaignInput) (*models.Campaign, error) {
	if p.IsBuyer() && in.BuyerID == "" {
		in.BuyerID = p.ID
	}
	if err := authz.Allow(p, authz.CreateCampaign, authz.Target{BuyerID: in.BuyerID}); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.New(apperr.KindValidation, "name is required")
	}
	if in.BuyerID == "" {
		return nil, apperr.New(apperr.KindValidation, "buyer_id is required")
	}
	if in.Budget != nil && *in.Budget < 0 {
		return nil, apperr.New(apperr.KindValidation, "budget must not be negative")
	}
	if err := checkDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	buyerName := p.Name
	if p.IsAdmin() {
		buyer, err := s.store.Users.Get(ctx, in.BuyerID)
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.New(apperr.KindValidation, "buyer_id does not name a user")
		}
		if err != nil {
			return nil, err
		}
		if buyer.Role != models.RoleBuyer || buyer.Status != models.UserApproved {
			return nil, apperr.New(apperr.KindValidation, "buyer_id must name an approved buyer")
		}
		buyerName = buyer.DisplayName()
	}

	now := s.timestamp()
	campaign := &models.Campaign{
		ID:             s.newID(),
		BuyerID:        in.BuyerID,
		BuyerName:      buyerName,
		Name:           in.Name,
		Description:    in.Description,
		Budget:         in.Budget,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Status:         models.CampaignDraft,
		CampaignAssets: []models.CampaignAsset{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Campaigns.Insert(ctx, campaign); err != nil {
		return nil, err
	}
	s.audit(ctx, p, "campaign_created", "campaign", campaign.ID, "", string(campaign.Status), nil)
	return campaign, nil
}

func (s *Service) GetCampaign(ctx context.Context, p models.Principal, id string) (*models.Campaign, error) {
	campaign, err := s.store.Campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Allow(p, authz.ViewCampaign, authz.Target{BuyerID: campaign.BuyerID}); err != nil {
		return nil, err
	}
	return campaign, nil
}

// ListCampaigns returns the buyer's own campaigns, or all campaigns for an
// admin (optionally for one buyer).
func (s *Service) ListCampaigns(ctx context.Context, p models.Principal, buyerID string) ([]models.Campaign, error) {
	switch {
	case p.IsAdmin():
		return s.store.Campaigns.List(ctx, store.CampaignFilter{BuyerID: buyerID})
	case p.IsBuyer():
		return s.store.Campaigns.List(ctx, store.CampaignFilter{BuyerID: p.ID})
	}
	return nil, apperr.ErrForbidden
}

func (s *Service) UpdateCampaign(ctx context.Context, p models.Principal, id string, in CampaignUpdate) (*models.Campaign, error) {
	campaign, err := s.GetCampaign(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Allow(p, authz.EditCampaign, authz.Target{BuyerID: campaign.BuyerID}); err != nil {
		return nil, err
	}
	if campaign.Status == models.CampaignCompleted {
		return nil, apperr.New(apperr.KindInvalidTransition, "completed campaigns cannot be edited")
	}

	set := bson.M{"updated_at": s.timestamp()}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.New(apperr.KindValidation, "name must not be empty")
		}
		set["name"] = name
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.Budget != nil {
		if *in.Budget < 0 {
			return nil, apperr.New(apperr.KindValidation, "budget must not be negative")
		}
		set["budget"] = *in.Budget
	}
	start, end := campaign.StartDate, campaign.EndDate
	if in.StartDate != nil {
		start = in.StartDate
		set["start_date"] = *in.StartDate
	}
	if in.EndDate != nil {
		end = in.EndDate
		set["end_date"] = *in.EndDate
	}
	if err := checkDates(start, end); err != nil {
		return nil, err
	}

	updated, err := s.store.Campaigns.Transition(ctx, id, bson.M{"status": string(campaign.Status)}, database.Update{Set: set})
	if errors.Is(err, store.ErrNoMatch) {
		return nil, apperr.ErrStaleState
	}
	if err != nil {
		return nil, err
	}
	s.audit(ctx, p, "campaign_updated", "campaign", id, string(campaign.Status), string(updated.Status), nil)
	return updated, nil
}

// DeleteCampaign removes a draft campaign no offer request references.
func (s *Service) DeleteCampaign(ctx context.Context, p models.Principal, id string) error {
	campaign, err := s.store.Campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Allow(p, authz.DeleteCampaign, authz.Target{BuyerID: campaign.BuyerID}); err != nil {
		return err
	}
	referencing, err := s.store.Offers.Count(ctx, store.OfferFilter{CampaignID: id})
	if err != nil {
		return err
	}
	if err := lifecycle.CanDeleteCampaign(campaign.Status, referencing); err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	err = s.store.Campaigns.Delete(ctx, id, bson.M{"status": string(models.CampaignDraft)})
	if errors.Is(err, store.ErrNoMatch) {
		return apperr.ErrStaleState
	}
	if err != nil {
		return err
	}
	// A request may have referenced the campaign while it was being deleted.
	referencing, err = s.store.Offers.Count(ctx, store.OfferFilter{CampaignID: id})
	if err == nil && referencing > 0 {
		if err := s.store.Campaigns.Insert(ctx, campaign); err != nil {
			s.logger.Error("campaign restore failed", "event", "compensation_failed", "verb", "delete_campaign", "campaign_id", id, "error", err)
		}
		return lifecycle.CanDeleteCampaign(campaign.Status, referencing)
	}
	s.audit(ctx, p, "campaign_deleted", "campaign", id, string(campaign.Status), "", nil)
	return nil
}

type CampaignStatusInput struct {
	Status models.CampaignStatus `json:"status"`
}

// SetCampaignStatus applies a campaign transition. Completing a live campaign
// releases every bound asset its buyer still holds; the campaign is written
// last.
func (s *Service) SetCampaignStatus(ctx context.Context, p models.Principal, id string, to models.CampaignStatus) (*models.Campaign, error) {
	if !to.Valid() {
		return nil, apperr.New(apperr.KindValidation, "unknown campaign status")
	}
	campaign, err := s.store.Campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Allow(p, authz.EditCampaign, authz.Target{BuyerID: campaign.BuyerID}); err != nil {
		return nil, err
	}
	if err := lifecycle.CheckCampaign(campaign.Status, to); err != nil {
		return nil, err
	}
	if to == models.CampaignLive {
		held, err := s.heldBindings(ctx, campaign)
		if err != nil {
			return nil, err
		}
		if held == 0 {
			return nil, apperr.New(apperr.KindInvalidTransition, "campaign has no booked assets")
		}
	}

	ctx = context.WithoutCancel(ctx)
	rb := s.newRollback("set_campaign_status")
	var released []string
	if to == models.CampaignCompleted {
		for _, binding := range campaign.CampaignAssets {
			ok, err := s.releaseForCampaign(ctx, campaign, binding.AssetID, rb)
			if err != nil {
				return nil, s.fail(ctx, rb, err)
			}
			if ok {
				released = append(released, binding.AssetID)
			}
		}
	}

	updated, err := s.store.Campaigns.Transition(ctx, id,
		bson.M{"status": string(campaign.Status)},
		database.Update{Set: bson.M{"status": string(to), "updated_at": s.timestamp()}},
	)
	if errors.Is(err, store.ErrNoMatch) {
		err = apperr.ErrStaleState
	}
	if err != nil {
		return nil, s.fail(ctx, rb, err)
	}
	s.undoCampaign(rb, campaign, updated, string(to)+" -> "+string(campaign.Status))
	for _, assetID := range released {
		if err := s.verifyAsset(ctx, assetID); err != nil {
			return nil, s.fail(ctx, rb, err)
		}
	}
	if err := s.verifyCampaign(ctx, id); err != nil {
		return nil, s.fail(ctx, rb, err)
	}

	s.audit(ctx, p, "campaign_status_set", "campaign", id, string(campaign.Status), string(to),
		map[string]interface{}{"released_assets": released})
	payload := map[string]interface{}{
		"campaign_id":     id,
		"campaign_name":   updated.Name,
		"status":          updated.Status,
		"old_status":      campaign.Status,
		"released_assets": released,
	}
	s.toAdmins(EventCampaignStatusChanged, payload)
	if buyer, err := s.store.Users.Get(ctx, campaign.BuyerID); err == nil {
		s.toPrincipal(buyer.Email, EventCampaignStatusChanged, payload)
	}
	s.logger.Info("campaign status set", "event", "campaign_status_set", "campaign_id", id, "from", campaign.Status, "to", to, "released", len(released))
	return updated, nil
}

// releaseForCampaign returns a bound asset to Available if it still carries
// a booking made for this campaign.
func (s *Service) releaseForCampaign(ctx context.Context, campaign *models.Campaign, assetID string, rb *rollback) (bool, error) {
	before, err := s.store.Assets.Get(ctx, assetID)
	if errors.Is(err, apperr.ErrAssetNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !before.Status.IsBuyerHeld() || deref(before.BuyerID) != campaign.BuyerID {
		return false, nil
	}
	if before.OfferID != nil {
		offer, err := s.store.Offers.Get(ctx, *before.OfferID)
		if err != nil && !errors.Is(err, apperr.ErrRequestNotFound) {
			return false, err
		}
		if offer != nil && deref(offer.ExistingCampaignID) != campaign.ID {
			// Rebooked outside this campaign.
			return false, nil
		}
	}
	if err := lifecycle.CheckAsset(before.Status, models.AssetAvailable); err != nil {
		return false, err
	}
	after, err := s.store.Assets.Transition(ctx, assetID, sameBooking(before),
		database.Update{Set: bson.M{"status": string(models.AssetAvailable), "updated_at": s.timestamp()}, Unset: buyerFields},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return false, apperr.ErrStaleState
	}
	if err != nil {
		return false, err
	}
	s.undoAsset(rb, before, after, "Available -> "+string(before.Status))
	return true, nil
}
