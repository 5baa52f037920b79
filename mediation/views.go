package mediation

import (
	"context"
	"time"

	"beatspace/authz"
	"beatspace/models"
	"beatspace/store"
)

const defaultAuditLimit = 100

// LiveAsset is a buyer's running asset joined with the request that booked it.
type LiveAsset struct {
	models.Asset
	OfferID          string     `json:"offer_id,omitempty"`
	CampaignName     string     `json:"campaign_name"`
	ContractDuration string     `json:"contract_duration"`
	Cost             *float64   `json:"cost"`
	AssetStartDate   *time.Time `json:"asset_start_date"`
	AssetEndDate     *time.Time `json:"asset_end_date"`
}

// BuyerLiveAssets lists the Live assets the buyer holds. Assets whose
// booking request cannot be found are returned without the joined fields.
func (s *Service) BuyerLiveAssets(ctx context.Context, p models.Principal) ([]LiveAsset, error) {
	if err := authz.Allow(p, authz.ViewLiveAssets, authz.Target{}); err != nil {
		return nil, err
	}
	assets, err := s.store.Assets.List(ctx, store.AssetFilter{BuyerID: p.ID, Statuses: []models.AssetStatus{models.AssetLive}})
	if err != nil {
		return nil, err
	}
	out := make([]LiveAsset, 0, len(assets))
	if len(assets) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(assets))
	for _, asset := range assets {
		ids = append(ids, asset.ID)
	}
	offers, err := s.store.Offers.List(ctx, store.OfferFilter{
		BuyerID:  p.ID,
		AssetIDs: ids,
		Statuses: []models.OfferStatus{models.OfferApproved, models.OfferAccepted},
	})
	if err != nil {
		return nil, err
	}
	governing := make(map[string]models.OfferRequest, len(offers))
	for _, offer := range offers {
		if current, ok := governing[offer.AssetID]; !ok || offer.UpdatedAt.After(current.UpdatedAt) {
			governing[offer.AssetID] = offer
		}
	}

	for _, asset := range assets {
		live := LiveAsset{Asset: asset}
		if offer, ok := governing[asset.ID]; ok {
			live.OfferID = offer.ID
			live.CampaignName = offer.CampaignName
			live.ContractDuration = offer.ContractDuration
			live.Cost = offer.AdminQuotedPrice
			live.AssetStartDate = firstTime(offer.ConfirmedStartDate, offer.TentativeStartDate)
			live.AssetEndDate = firstTime(offer.ConfirmedEndDate, offer.TentativeEndDate)
		}
		out = append(out, live)
	}
	return out, nil
}

func firstTime(times ...*time.Time) *time.Time {
	for _, t := range times {
		if t != nil {
			return t
		}
	}
	return nil
}

type BuyerSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone,omitempty"`
}

type AssetSummary struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Type       models.AssetType   `json:"type"`
	Address    string             `json:"address"`
	Status     models.AssetStatus `json:"status"`
	SellerID   string             `json:"seller_id"`
	SellerName string             `json:"seller_name,omitempty"`
}

// QueueEntry is one row of the admin queue. Buyer and Asset are nil when
// the referenced document no longer exists.
type QueueEntry struct {
	models.OfferRequest
	Buyer *BuyerSummary `json:"buyer"`
	Asset *AssetSummary `json:"asset"`
}

// AdminQueue lists every offer request, newest first, with buyer and asset
// identity joined in.
func (s *Service) AdminQueue(ctx context.Context, p models.Principal, statuses []models.OfferStatus) ([]QueueEntry, error) {
	if err := authz.Allow(p, authz.MediateOffer, authz.Target{}); err != nil {
		return nil, err
	}
	offers, err := s.store.Offers.List(ctx, store.OfferFilter{Statuses: statuses})
	if err != nil {
		return nil, err
	}
	out := make([]QueueEntry, 0, len(offers))
	if len(offers) == 0 {
		return out, nil
	}

	buyerIDs := make([]string, 0, len(offers))
	assetIDs := make([]string, 0, len(offers))
	for _, offer := range offers {
		buyerIDs = append(buyerIDs, offer.BuyerID)
		assetIDs = append(assetIDs, offer.AssetID)
	}
	users, err := s.store.Users.List(ctx, store.UserFilter{IDs: buyerIDs})
	if err != nil {
		return nil, err
	}
	assets, err := s.store.Assets.List(ctx, store.AssetFilter{IDs: assetIDs})
	if err != nil {
		return nil, err
	}
	buyers := make(map[string]*BuyerSummary, len(users))
	for _, u := range users {
		buyers[u.ID] = &BuyerSummary{ID: u.ID, Email: u.Email, CompanyName: u.CompanyName, ContactName: u.ContactName, Phone: u.Phone}
	}
	assetByID := make(map[string]*AssetSummary, len(assets))
	for _, a := range assets {
		assetByID[a.ID] = &AssetSummary{ID: a.ID, Name: a.Name, Type: a.Type, Address: a.Address, Status: a.Status, SellerID: a.SellerID, SellerName: a.SellerName}
	}

	for _, offer := range offers {
		out = append(out, QueueEntry{OfferRequest: offer, Buyer: buyers[offer.BuyerID], Asset: assetByID[offer.AssetID]})
	}
	return out, nil
}

type PublicStats struct {
	TotalAssets     int64 `json:"total_assets"`
	AvailableAssets int64 `json:"available_assets"`
	LiveAssets      int64 `json:"live_assets"`
	TotalSellers    int64 `json:"total_sellers"`
	LiveCampaigns   int64 `json:"live_campaigns"`
}

// Stats counts the public marketplace figures. Listings awaiting approval
// are not counted.
func (s *Service) Stats(ctx context.Context) (*PublicStats, error) {
	var stats PublicStats
	var err error
	listed := []models.AssetStatus{
		models.AssetAvailable, models.AssetPendingOffer, models.AssetNegotiating, models.AssetBooked,
		models.AssetWorkInProgress, models.AssetLive, models.AssetCompleted, models.AssetUnavailable,
	}
	if stats.TotalAssets, err = s.store.Assets.Count(ctx, store.AssetFilter{Statuses: listed}); err != nil {
		return nil, err
	}
	if stats.AvailableAssets, err = s.store.Assets.Count(ctx, store.AssetFilter{Statuses: []models.AssetStatus{models.AssetAvailable}}); err != nil {
		return nil, err
	}
	if stats.LiveAssets, err = s.store.Assets.Count(ctx, store.AssetFilter{Statuses: []models.AssetStatus{models.AssetLive}}); err != nil {
		return nil, err
	}
	if stats.TotalSellers, err = s.store.Users.Count(ctx, store.UserFilter{Role: models.RoleSeller, Status: models.UserApproved}); err != nil {
		return nil, err
	}
	if stats.LiveCampaigns, err = s.store.Campaigns.Count(ctx, store.CampaignFilter{Statuses: []models.CampaignStatus{models.CampaignLive}}); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Service) ListAudit(ctx context.Context, p models.Principal, entityID string, limit int64) ([]models.AuditLog, error) {
	if err := authz.Allow(p, authz.ViewAudit, authz.Target{}); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = defaultAuditLimit
	}
	return s.store.Audit.List(ctx, entityID, limit)
}
