package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/database"
	"beatspace/models"
)

func seedAsset(t *testing.T, s *Store, id string, status models.AssetStatus) {
	t.Helper()
	now := time.Now().UTC()
	asset := &models.Asset{ID: id, Name: "Asset " + id, Status: status, SellerID: "seller-1", CreatedAt: now, UpdatedAt: now}
	if err := s.Assets.Insert(context.Background(), asset); err != nil {
		t.Fatalf("insert asset: %v", err)
	}
}

func TestAssetGetMissing(t *testing.T) {
	s := NewMemory()
	_, err := s.Assets.Get(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrAssetNotFound) {
		t.Fatalf("expected asset not found, got %v", err)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound kind, got %v", err)
	}
}

func TestAssetTransitionIsConditional(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedAsset(t, s, "a1", models.AssetAvailable)

	cond := bson.M{"status": string(models.AssetAvailable)}
	update := database.Update{Set: bson.M{"status": string(models.AssetPendingOffer)}}

	asset, err := s.Assets.Transition(ctx, "a1", cond, update)
	if err != nil {
		t.Fatalf("first transition: %v", err)
	}
	if asset.Status != models.AssetPendingOffer {
		t.Fatalf("expected Pending Offer, got %s", asset.Status)
	}
	if _, err := s.Assets.Transition(ctx, "a1", cond, update); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch on stale condition, got %v", err)
	}
}

func TestAssetListByStatus(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedAsset(t, s, "a1", models.AssetAvailable)
	seedAsset(t, s, "a2", models.AssetBooked)
	seedAsset(t, s, "a3", models.AssetLive)

	held, err := s.Assets.List(ctx, AssetFilter{Statuses: models.BuyerHeldStatuses})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(held) != 2 {
		t.Fatalf("expected 2 buyer-held assets, got %d", len(held))
	}
	count, err := s.Assets.Count(ctx, AssetFilter{IDs: []string{"a1", "a3", "zz"}})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 assets by id, got %d", count)
	}
}

func TestOffersActiveForAsset(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []models.OfferStatus{models.OfferRejected, models.OfferQuoted, models.OfferApproved} {
		offer := &models.OfferRequest{
			ID:        "o" + string(rune('1'+i)),
			AssetID:   "a1",
			BuyerID:   "b1",
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.Offers.Insert(ctx, offer); err != nil {
			t.Fatalf("insert offer: %v", err)
		}
	}

	active, err := s.Offers.ActiveForAsset(ctx, "a1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "o2" {
		t.Fatalf("expected only o2 active, got %+v", active)
	}

	all, err := s.Offers.List(ctx, OfferFilter{BuyerID: "b1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "o3" {
		t.Fatalf("expected newest first, got %+v", all)
	}
}

func TestOfferDeleteConditional(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	offer := &models.OfferRequest{ID: "o1", AssetID: "a1", BuyerID: "b1", Status: models.OfferQuoted}
	if err := s.Offers.Insert(ctx, offer); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Offers.Delete(ctx, "o1", bson.M{"status": string(models.OfferPending)}); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	if err := s.Offers.Delete(ctx, "o1", bson.M{"status": string(models.OfferQuoted)}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Offers.Get(ctx, "o1"); !errors.Is(err, apperr.ErrRequestNotFound) {
		t.Fatalf("expected request not found, got %v", err)
	}
}

func TestCampaignBindings(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	campaign := &models.Campaign{ID: "c1", BuyerID: "b1", Name: "Spring", Status: models.CampaignDraft}
	if err := s.Campaigns.Insert(ctx, campaign); err != nil {
		t.Fatalf("insert: %v", err)
	}

	binding := models.CampaignAsset{AssetID: "a1", AssetName: "North Gate"}
	updated, err := s.Campaigns.Transition(ctx, "c1", nil, database.Update{
		Set:      bson.M{"status": string(models.CampaignLive)},
		AddToSet: bson.M{"campaign_assets": binding},
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if !updated.HasAsset("a1") || updated.Status != models.CampaignLive {
		t.Fatalf("unexpected campaign after attach: %+v", updated)
	}

	updated, err = s.Campaigns.Transition(ctx, "c1", nil, database.Update{
		Pull: bson.M{"campaign_assets": bson.M{"asset_id": "a1"}},
	})
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if updated.HasAsset("a1") {
		t.Fatalf("binding should be removed: %+v", updated.CampaignAssets)
	}
}

func TestUsersEmailIsUniqueAndNormalized(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	if err := s.Users.Insert(ctx, &models.User{ID: "u1", Email: " Buyer@Example.com ", Role: models.RoleBuyer}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.Users.Insert(ctx, &models.User{ID: "u2", Email: "buyer@example.com", Role: models.RoleBuyer})
	if !errors.Is(err, apperr.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
	user, err := s.Users.GetByEmail(ctx, "BUYER@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("expected u1, got %s", user.ID)
	}
	if _, err := s.Users.Update(ctx, "missing", database.Update{Set: bson.M{"status": "approved"}}); !errors.Is(err, apperr.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestAuditListNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := &models.AuditLog{ID: string(rune('a' + i)), EntityID: "o1", Action: "offer_quoted", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Audit.Append(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, err := s.Audit.List(ctx, "o1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "c" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
