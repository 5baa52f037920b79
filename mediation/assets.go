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

// AssetInput lists the fields a seller or admin sets when listing an asset.
// SellerID is only read from admins.
type AssetInput struct {
	SellerID    string             `json:"seller_id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Type        models.AssetType   `json:"type"`
	Address     string             `json:"address"`
	District    string             `json:"district"`
	Division    string             `json:"division"`
	Location    models.Location    `json:"location"`
	Dimensions  string             `json:"dimensions"`
	Pricing     map[string]float64 `json:"pricing"`
	Photos      []string           `json:"photos"`
}

// AssetUpdate changes listing fields only. Status and the buyer fields are
// owned by the lifecycle.
type AssetUpdate struct {
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	Type        *models.AssetType   `json:"type"`
	Address     *string             `json:"address"`
	District    *string             `json:"district"`
	Division    *string             `json:"division"`
	Location    *models.Location    `json:"location"`
	Dimensions  *string             `json:"dimensions"`
	Pricing     *map[string]float64 `json:"pricing"`
	Photos      *[]string           `json:"photos"`
}

type CreativeInput struct {
	CreativeTags     *[]string  `json:"creative_tags"`
	CreativeTimeline *time.Time `json:"creative_timeline"`
}

type AssetStatusInput struct {
	Status models.AssetStatus `json:"status"`
}

func checkPricing(pricing map[string]float64) error {
	for key, amount := range pricing {
		if !lifecycle.ValidDuration(key) {
			return apperr.New(apperr.KindValidation, "unknown pricing duration "+key)
		}
		if amount < 0 {
			return apperr.New(apperr.KindValidation, "pricing must not be negative")
		}
	}
	return nil
}

func (in AssetInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return apperr.New(apperr.KindValidation, "name is required")
	case !in.Type.Valid():
		return apperr.New(apperr.KindValidation, "type is not a known asset type")
	case strings.TrimSpace(in.Address) == "":
		return apperr.New(apperr.KindValidation, "address is required")
	}
	return checkPricing(in.Pricing)
}

// CreateAsset lists a new asset. Seller listings wait for admin approval;
// admin listings are available at once.
func (s *Service) CreateAsset(ctx context.Context, p models.Principal, in AssetInput) (*models.Asset, error) {
	if p.IsSeller() {
		in.SellerID = p.ID
	}
	if err := authz.Allow(p, authz.CreateAsset, authz.Target{SellerID: in.SellerID}); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	status := models.AssetPendingApproval
	sellerName := p.Name
	if p.IsAdmin() {
		if in.SellerID == "" {
			return nil, apperr.New(apperr.KindValidation, "seller_id is required")
		}
		seller, err := s.store.Users.Get(ctx, in.SellerID)
		if errors.Is(err, apperr.ErrUserNotFound) {
			return nil, apperr.New(apperr.KindValidation, "seller_id does not name a user")
		}
		if err != nil {
			return nil, err
		}
		if seller.Role != models.RoleSeller || seller.Status != models.UserApproved {
			return nil, apperr.New(apperr.KindValidation, "seller_id must name an approved seller")
		}
		status = models.AssetAvailable
		sellerName = seller.DisplayName()
	}

	now := s.timestamp()
	asset := &models.Asset{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Type:        in.Type,
		Address:     strings.TrimSpace(in.Address),
		District:    in.District,
		Division:    in.Division,
		Location:    in.Location,
		Dimensions:  in.Dimensions,
		Pricing:     in.Pricing,
		Photos:      in.Photos,
		Status:      status,
		SellerID:    in.SellerID,
		SellerName:  sellerName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Assets.Insert(ctx, asset); err != nil {
		return nil, err
	}
	s.audit(ctx, p, "asset_created", "asset", asset.ID, "", string(asset.Status), nil)
	return asset, nil
}

// viewAsset hides the buyer linkage from everyone but admins and the buyer
// holding the asset.
func viewAsset(p models.Principal, asset models.Asset) models.Asset {
	if p.IsAdmin() || p.IsBuyer() && deref(asset.BuyerID) == p.ID {
		return asset
	}
	asset.BuyerID = nil
	asset.BuyerName = nil
	asset.OfferID = nil
	asset.CreativeTags = nil
	asset.CreativeTimeline = nil
	return asset
}

func (s *Service) GetAsset(ctx context.Context, p models.Principal, id string) (*models.Asset, error) {
	asset, err := s.store.Assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset.Status == models.AssetPendingApproval && !p.IsAdmin() && asset.SellerID != p.ID {
		return nil, apperr.ErrAssetNotFound
	}
	view := viewAsset(p, *asset)
	return &view, nil
}

// ListAssets returns the seller's own listings, the whole inventory for
// admins, and every approved listing for buyers.
func (s *Service) ListAssets(ctx context.Context, p models.Principal, statuses []models.AssetStatus) ([]models.Asset, error) {
	filter := store.AssetFilter{Statuses: statuses}
	if p.IsSeller() {
		filter.SellerID = p.ID
	}
	assets, err := s.store.Assets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.Asset, 0, len(assets))
	for _, asset := range assets {
		if p.IsBuyer() && asset.Status == models.AssetPendingApproval {
			continue
		}
		out = append(out, viewAsset(p, asset))
	}
	return out, nil
}

// PublicAssets is the unauthenticated catalog.
func (s *Service) PublicAssets(ctx context.Context) ([]models.PublicAsset, error) {
	assets, err := s.store.Assets.List(ctx, store.AssetFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]models.PublicAsset, 0, len(assets))
	for _, asset := range assets {
		if asset.Status == models.AssetPendingApproval {
			continue
		}
		out = append(out, asset.Public())
	}
	return out, nil
}

func (s *Service) UpdateAsset(ctx context.Context, p models.Principal, id string, in AssetUpdate) (*models.Asset, error) {
	asset, err := s.store.Assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Allow(p, authz.EditAsset, authz.Target{SellerID: asset.SellerID}); err != nil {
		return nil, err
	}

	set := bson.M{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.New(apperr.KindValidation, "name must not be empty")
		}
		set["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, apperr.New(apperr.KindValidation, "type is not a known asset type")
		}
		set["type"] = string(*in.Type)
	}
	if in.Address != nil {
		if strings.TrimSpace(*in.Address) == "" {
			return nil, apperr.New(apperr.KindValidation, "address must not be empty")
		}
		set["address"] = strings.TrimSpace(*in.Address)
	}
	if in.District != nil {
		set["district"] = *in.District
	}
	if in.Division != nil {
		set["division"] = *in.Division
	}
	if in.Location != nil {
		set["location"] = *in.Location
	}
	if in.Dimensions != nil {
		set["dimensions"] = *in.Dimensions
	}
	if in.Pricing != nil {
		if err := checkPricing(*in.Pricing); err != nil {
			return nil, err
		}
		set["pricing"] = *in.Pricing
	}
	if in.Photos != nil {
		set["photos"] = *in.Photos
	}
	if len(set) == 0 {
		view := viewAsset(p, *asset)
		return &view, nil
	}
	set["updated_at"] = s.timestamp()

	updated, err := s.store.Assets.Transition(ctx, id, bson.M{"seller_id": asset.SellerID}, database.Update{Set: set})
	if errors.Is(err, store.ErrNoMatch) {
		return nil, apperr.ErrStaleState
	}
	if err != nil {
		return nil, err
	}
	view := viewAsset(p, *updated)
	return &view, nil
}

// DeleteAsset removes an asset nothing depends on. The delete is conditioned
// on the observed status so a concurrent submit wins.
func (s *Service) DeleteAsset(ctx context.Context, p models.Principal, id string) error {
	asset, err := s.store.Assets.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Allow(p, authz.EditAsset, authz.Target{SellerID: asset.SellerID}); err != nil {
		return err
	}
	active, err := s.store.Offers.Count(ctx, store.OfferFilter{AssetID: id, Statuses: models.ActiveOfferStatuses})
	if err != nil {
		return err
	}
	if err := lifecycle.CanDeleteAsset(asset.Status, active); err != nil {
		return err
	}
	err = s.store.Assets.Delete(ctx, id, bson.M{"status": string(asset.Status), "buyer_id": bson.M{"$exists": false}})
	if errors.Is(err, store.ErrNoMatch) {
		return apperr.ErrStaleState
	}
	if err != nil {
		return err
	}
	s.audit(ctx, p, "asset_deleted", "asset", id, string(asset.Status), "", nil)
	return nil
}

// SetAssetStatus is the admin path for statuses no offer depends on.
func (s *Service) SetAssetStatus(ctx context.Context, p models.Principal, id string, to models.AssetStatus) (*models.Asset, error) {
	if err := authz.Allow(p, authz.SetAssetStatus, authz.Target{}); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, apperr.New(apperr.KindValidation, "unknown asset status")
	}
	asset, err := s.store.Assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckAdminAsset(asset.Status, to); err != nil {
		return nil, err
	}
	updated, err := s.store.Assets.Transition(ctx, id,
		bson.M{"status": string(asset.Status)},
		database.Update{Set: bson.M{"status": string(to), "updated_at": s.timestamp()}},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return nil, apperr.ErrStaleState
	}
	if err != nil {
		return nil, err
	}
	s.audit(ctx, p, "asset_status_set", "asset", id, string(asset.Status), string(to), nil)
	s.logger.Info("asset status set", "event", "asset_status_set", "asset_id", id, "from", asset.Status, "to", to)
	return updated, nil
}

// UpdateCreative lets the buyer holding an asset change its creative fields.
func (s *Service) UpdateCreative(ctx context.Context, p models.Principal, id string, in CreativeInput) (*models.Asset, error) {
	asset, err := s.store.Assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Allow(p, authz.UpdateCreative, authz.Target{BuyerID: deref(asset.BuyerID)}); err != nil {
		return nil, err
	}
	set := bson.M{}
	if in.CreativeTags != nil {
		tags := make([]string, 0, len(*in.CreativeTags))
		for _, tag := range *in.CreativeTags {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		set["creative_tags"] = tags
	}
	if in.CreativeTimeline != nil {
		set["creative_timeline"] = in.CreativeTimeline.UTC()
	}
	if len(set) == 0 {
		return nil, apperr.New(apperr.KindValidation, "creative_tags or creative_timeline is required")
	}
	set["updated_at"] = s.timestamp()

	updated, err := s.store.Assets.Transition(ctx, id,
		bson.M{"buyer_id": p.ID, "status": statusIn(models.BuyerHeldStatuses)},
		database.Update{Set: set},
	)
	if errors.Is(err, store.ErrNoMatch) {
		return nil, apperr.ErrNotOwner
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}
