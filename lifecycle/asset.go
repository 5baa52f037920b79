package lifecycle

import "beatspace/models"

var assetEdges = map[models.AssetStatus][]models.AssetStatus{
	models.AssetAvailable:       {models.AssetPendingOffer, models.AssetLive, models.AssetUnavailable},
	models.AssetPendingOffer:    {models.AssetNegotiating, models.AssetAvailable, models.AssetLive},
	models.AssetNegotiating:     {models.AssetPendingOffer, models.AssetAvailable, models.AssetLive},
	models.AssetBooked:          {models.AssetAvailable, models.AssetLive, models.AssetPendingOffer},
	models.AssetLive:            {models.AssetAvailable, models.AssetLive, models.AssetPendingOffer},
	models.AssetWorkInProgress:  {models.AssetAvailable, models.AssetLive, models.AssetPendingOffer},
	models.AssetCompleted:       {models.AssetAvailable, models.AssetLive, models.AssetPendingOffer},
	models.AssetPendingApproval: {models.AssetAvailable, models.AssetUnavailable},
	models.AssetUnavailable:     {models.AssetAvailable},
}

// CheckAsset validates a single asset status move made by the lifecycle.
func CheckAsset(from, to models.AssetStatus) error {
	if from == to && !from.IsBuyerHeld() {
		return nil
	}
	for _, next := range assetEdges[from] {
		if next == to {
			return nil
		}
	}
	return invalid("asset cannot move from %q to %q", from, to)
}

// CheckAdminAsset validates the admin's direct asset status path, which may
// only touch statuses no offer depends on.
func CheckAdminAsset(from, to models.AssetStatus) error {
	switch {
	case from == models.AssetPendingApproval && (to == models.AssetAvailable || to == models.AssetUnavailable):
		return nil
	case from == models.AssetAvailable && to == models.AssetUnavailable:
		return nil
	case from == models.AssetUnavailable && to == models.AssetAvailable:
		return nil
	}
	return invalid("asset status %q cannot be set to %q directly", from, to)
}

// CanDeleteAsset rejects deleting an asset that an offer or buyer depends on.
func CanDeleteAsset(status models.AssetStatus, activeOffers int64) error {
	if status.IsOfferHold() || status.IsBuyerHeld() || activeOffers > 0 {
		return invalid("asset in status %q is referenced by an offer request", status)
	}
	return nil
}
