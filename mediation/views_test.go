package mediation

import (
	"testing"
	"time"

	"beatspace/lifecycle"
	"beatspace/models"
)

func TestBuyerLiveAssetsJoinsBookingRequest(t *testing.T) {
	f := newFixture(t)
	f.seedAsset("a1", models.AssetAvailable)
	f.seedAsset("a2", models.AssetAvailable)
	req := f.submit(f.buyer, requestFor("a1"))
	f.quote(req.ID, 95000, "")
	f.respond(f.buyer, req.ID, lifecycle.RespondAccept, "")
	f.submit(f.buyer, requestFor("a2"))

	live, err := f.svc.BuyerLiveAssets(f.ctx, f.buyer)
	if err != nil {
		t.Fatalf("live assets: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("expected one live asset, got %d", len(live))
	}
	got := live[0]
	if got.ID != "a1" || got.OfferID != req.ID || got.CampaignName != "Eid Launch" || got.ContractDuration != "3_months" {
		t.Fatalf("unexpected live asset %+v", got)
	}
	if got.Cost == nil || *got.Cost != 95000 {
		t.Fatalf("expected cost 95000, got %v", got.Cost)
	}
	if got.AssetStartDate == nil || got.AssetEndDate == nil {
		t.Fatal("expected the confirmed window")
	}

	other, err := f.svc.BuyerLiveAssets(f.ctx, f.buyer2)
	if err != nil {
		t.Fatalf("live assets: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected nothing for another buyer, got %d", len(other))
	}
}

func TestBuyerLiveAssetsToleratesMissingRequest(t *testing.T) {
	f := newFixture(t)
	f.seedAsset("a1", models.AssetAvailable)
	req := f.submit(f.buyer, requestFor("a1"))
	if _, err := f.setStatus(req.ID, models.OfferApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.st.Offers.Delete(f.ctx, req.ID, nil); err != nil {
		t.Fatalf("delete offer: %v", err)
	}

	live, err := f.svc.BuyerLiveAssets(f.ctx, f.buyer)
	if err != nil {
		t.Fatalf("live assets: %v", err)
	}
	if len(live) != 1 || live[0].OfferID != "" || live[0].Cost != nil {
		t.Fatalf("expected the asset without joined fields, got %+v", live)
	}
}

func TestAdminQueueJoinsIdentities(t *testing.T) {
	f := newFixture(t)
	f.seedAsset("a1", models.AssetAvailable)
	req := f.submit(f.buyer, requestFor("a1"))
	orphan := &models.OfferRequest{ID: "orphan", BuyerID: "gone", AssetID: "ghost", Status: models.OfferRejected, CreatedAt: f.now.Add(-time.Hour)}
	if err := f.st.Offers.Insert(f.ctx, orphan); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	queue, err := f.svc.AdminQueue(f.ctx, f.admin, nil)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("expected two entries, got %d", len(queue))
	}
	if queue[0].ID != req.ID {
		t.Fatalf("expected newest first, got %s", queue[0].ID)
	}
	if queue[0].Buyer == nil || queue[0].Buyer.Email != f.buyer.Email || queue[0].Asset == nil || queue[0].Asset.ID != "a1" {
		t.Fatalf("expected joined identities, got %+v", queue[0])
	}
	if queue[1].Buyer != nil || queue[1].Asset != nil {
		t.Fatal("expected nil summaries for missing documents")
	}

	if _, err := f.svc.AdminQueue(f.ctx, f.buyer, nil); err == nil {
		t.Fatal("expected buyers to be refused the admin queue")
	}
}

func TestPublicStats(t *testing.T) {
	f := newFixture(t)
	f.seedAsset("a1", models.AssetAvailable)
	f.seedAsset("a2", models.AssetAvailable)
	f.seedAsset("a3", models.AssetPendingApproval)
	f.bookIntoCampaign("a2")

	stats, err := f.svc.Stats(f.ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := PublicStats{TotalAssets: 2, AvailableAssets: 1, LiveAssets: 1, TotalSellers: 1, LiveCampaigns: 1}
	if *stats != want {
		t.Fatalf("expected %+v, got %+v", want, *stats)
	}
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)
	f.seedAsset("a1", models.AssetAvailable)
	req := f.submit(f.buyer, requestFor("a1"))
	f.quote(req.ID, 1000, "")

	entries, err := f.svc.ListAudit(f.ctx, f.admin, req.ID, 0)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	actions := map[string]bool{}
	for _, entry := range entries {
		actions[entry.Action] = true
	}
	if !actions["offer_submitted"] || !actions["offer_quoted"] {
		t.Fatalf("unexpected actions %v", actions)
	}
	if _, err := f.svc.ListAudit(f.ctx, f.buyer, "", 0); err == nil {
		t.Fatal("expected buyers to be refused the audit trail")
	}
}
