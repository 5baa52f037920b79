package lifecycle

import "beatspace/models"

type campaignEdge struct {
	from, to models.CampaignStatus
}

// manualCampaignEdges are the transitions a user may request through the
// campaign status endpoint.
var manualCampaignEdges = map[campaignEdge]bool{
	{models.CampaignDraft, models.CampaignNegotiation}: true,
	{models.CampaignNegotiation, models.CampaignDraft}: true,
	{models.CampaignNegotiation, models.CampaignReady}: true,
	{models.CampaignReady, models.CampaignLive}:        true,
	{models.CampaignLive, models.CampaignCompleted}:    true,
}

// autoCampaignEdges are only taken by offer cascades.
var autoCampaignEdges = map[campaignEdge]bool{
	{models.CampaignDraft, models.CampaignLive}: true,
	{models.CampaignLive, models.CampaignDraft}: true,
}

func CheckCampaign(from, to models.CampaignStatus) error {
	if !to.Valid() {
		return invalid("unknown campaign status %q", to)
	}
	if from == models.CampaignCompleted {
		return invalid("campaign is completed")
	}
	if manualCampaignEdges[campaignEdge{from, to}] {
		return nil
	}
	if autoCampaignEdges[campaignEdge{from, to}] {
		return invalid("campaign moves from %q to %q only through offer approval", from, to)
	}
	return invalid("campaign cannot move from %q to %q", from, to)
}

// AcceptsBindings reports whether an approved offer may attach its asset to the campaign.
func AcceptsBindings(status models.CampaignStatus) bool {
	return status != models.CampaignCompleted
}

// CanDeleteCampaign allows deletion of unreferenced drafts only.
func CanDeleteCampaign(status models.CampaignStatus, referencingOffers int64) error {
	if status != models.CampaignDraft {
		return invalid("only draft campaigns can be deleted")
	}
	if referencingOffers > 0 {
		return invalid("campaign is referenced by %d offer request(s)", referencingOffers)
	}
	return nil
}
