package lifecycle

import (
	"fmt"

	"beatspace/apperr"
	"beatspace/models"
)

func violation(format string, args ...any) error {
	return apperr.New(apperr.KindInvariantViolation, fmt.Sprintf(format, args...))
}

// CheckBookingCoherence: buyer-held assets carry a buyer and an end date,
// every other asset carries neither.
func CheckBookingCoherence(asset models.Asset) error {
	hasBuyer := asset.BuyerID != nil && *asset.BuyerID != ""
	hasDate := asset.NextAvailableDate != nil
	if asset.Status.IsBuyerHeld() {
		if !hasBuyer || !hasDate {
			return violation("asset %s is %q without buyer or next available date", asset.ID, asset.Status)
		}
		return nil
	}
	if hasBuyer || hasDate {
		return violation("asset %s is %q but still references a buyer", asset.ID, asset.Status)
	}
	return nil
}

// CheckOfferHold: an asset is under offer hold iff exactly one active request references it.
func CheckOfferHold(asset models.Asset, activeOffers int64) error {
	if asset.Status.IsOfferHold() != (activeOffers == 1) || activeOffers > 1 {
		return violation("asset %s is %q with %d active offer request(s)", asset.ID, asset.Status, activeOffers)
	}
	return nil
}

func CheckQuote(offer models.OfferRequest) error {
	if offer.Status != models.OfferQuoted {
		return nil
	}
	if offer.AdminQuotedPrice == nil || offer.QuotedAt == nil || offer.QuoteCount < 1 {
		return violation("quoted request %s lacks price, quote time or count", offer.ID)
	}
	return nil
}

// CheckWindow: a booked request's window is ordered and matches the asset's release date.
func CheckWindow(offer models.OfferRequest, asset models.Asset) error {
	if offer.ConfirmedStartDate == nil || offer.ConfirmedEndDate == nil {
		return violation("booked request %s has no confirmed window", offer.ID)
	}
	if offer.ConfirmedEndDate.Before(*offer.ConfirmedStartDate) {
		return violation("request %s window ends before it starts", offer.ID)
	}
	if asset.NextAvailableDate == nil || !asset.NextAvailableDate.Equal(*offer.ConfirmedEndDate) {
		return violation("asset %s next available date differs from request %s end date", asset.ID, offer.ID)
	}
	return nil
}

// CheckBookingOwner: a buyer-held asset is governed by a booked request of
// the same buyer whose window ends on the asset's next available date.
func CheckBookingOwner(asset models.Asset, offer models.OfferRequest) error {
	if asset.OfferID == nil || *asset.OfferID != offer.ID || offer.AssetID != asset.ID {
		return violation("asset %s is not booked by request %s", asset.ID, offer.ID)
	}
	if !offer.Status.IsBooked() || asset.BuyerID == nil || *asset.BuyerID != offer.BuyerID {
		return violation("asset %s is held for request %s in status %q", asset.ID, offer.ID, offer.Status)
	}
	return CheckWindow(offer, asset)
}

// CheckCampaignLinkage: a live campaign has at least one bound buyer-held asset.
// held reports whether a bound asset id is currently buyer-held.
func CheckCampaignLinkage(campaign models.Campaign, held func(assetID string) bool) error {
	if campaign.Status != models.CampaignLive {
		return nil
	}
	for _, binding := range campaign.CampaignAssets {
		if held(binding.AssetID) {
			return nil
		}
	}
	return violation("live campaign %s has no buyer-held asset", campaign.ID)
}
