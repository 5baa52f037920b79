package mediation

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/apperr"
	"beatspace/authz"
	"beatspace/database"
	"beatspace/lifecycle"
	"beatspace/models"
	"beatspace/websocket"
)

// EventOfferStatusChanged tells a buyer an admin moved their request.
const EventOfferStatusChanged = "offer_status_changed"

type StatusInput struct {
	Status models.OfferStatus `json:"status"`
	Reason string             `json:"reason"`
}

// SetRequestStatus lets an admin move a request to Pending, In Process,
// On Hold, Approved or Rejected from any status, with the matching asset
// and campaign cascade.
func (s *Service) SetRequestStatus(ctx context.Context, admin models.Principal, id string, in StatusInput) (*models.OfferRequest, error) {
	if err := authz.Allow(admin, authz.MediateOffer, authz.Target{}); err != nil {
		return nil, err
	}
	if !in.Status.Valid() {
		return nil, apperr.New(apperr.KindValidation, "unknown offer request status")
	}
	offer, err := s.store.Offers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	effect, err := lifecycle.AdminSetStatus(offer.Status, in.Status)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)

	ctx = context.WithoutCancel(ctx)
	rb := s.newRollback("set_request_status")
	var updated *models.OfferRequest
	switch effect {
	case lifecycle.AssetBook:
		src := bookFromHold
		switch {
		case offer.Status.IsBooked():
			src = bookFromBooking
		case offer.Status == models.OfferRejected:
			src = bookFromFree
		}
		updated, err = s.book(ctx, offer, in.Status, src, reason, rb)
	case lifecycle.AssetRelease:
		if offer.Status.IsBooked() {
			updated, err = s.releaseBooking(ctx, offer, models.AssetAvailable, rejectSet(reason, s.timestamp()), rb)
		} else {
			updated, err = s.releaseFromHold(ctx, offer, reason, rb)
		}
	case lifecycle.AssetRehold:
		updated, err = s.releaseBooking(ctx, offer, models.AssetPendingOffer, s.statusSet(in.Status, reason), rb)
	case lifecycle.AssetHold:
		if _, err = s.holdAsset(ctx, offer.AssetID, rb); err == nil {
			updated, err = s.writeOffer(ctx, offer, database.Update{Set: s.statusSet(in.Status, reason)}, rb)
		}
	default:
		updated, err = s.writeOffer(ctx, offer, database.Update{Set: s.statusSet(in.Status, reason)}, rb)
	}
	if err != nil {
		return nil, s.fail(ctx, rb, err)
	}
	if err := s.verifyAsset(ctx, offer.AssetID); err != nil {
		return nil, s.fail(ctx, rb, err)
	}

	s.audit(ctx, admin, "offer_status_set", "offer_request", id, string(offer.Status), string(updated.Status),
		map[string]interface{}{"reason": reason, "asset_effect": effect.String()})

	payload := map[string]interface{}{
		"offer_id":    updated.ID,
		"asset_id":    updated.AssetID,
		"asset_name":  updated.AssetName,
		"buyer_id":    updated.BuyerID,
		"buyer_email": updated.BuyerEmail,
		"status":      updated.Status,
		"old_status":  offer.Status,
		"reason":      reason,
	}
	switch updated.Status {
	case models.OfferApproved:
		payload["confirmed_start_date"] = updated.ConfirmedStartDate
		payload["confirmed_end_date"] = updated.ConfirmedEndDate
		s.toAdmins(websocket.EventOfferApproved, payload)
		if s.notify.Connected(updated.BuyerEmail) {
			s.toPrincipal(updated.BuyerEmail, websocket.EventConnectionStatus, map[string]interface{}{
				"status":     "offer_approved",
				"offer_id":   updated.ID,
				"asset_name": updated.AssetName,
				"message":    "Your offer request for " + updated.AssetName + " has been approved",
			})
		}
	case models.OfferRejected:
		s.toAdmins(websocket.EventOfferRejected, payload)
		s.toPrincipal(updated.BuyerEmail, websocket.EventOfferRejected, payload)
	default:
		s.toPrincipal(updated.BuyerEmail, EventOfferStatusChanged, payload)
	}
	s.logger.Info("offer status set", "event", "offer_status_set", "offer_id", id, "from", offer.Status, "to", updated.Status, "asset_effect", effect.String())
	return updated, nil
}

func (s *Service) statusSet(status models.OfferStatus, reason string) bson.M {
	set := bson.M{"status": string(status), "updated_at": s.timestamp()}
	if reason != "" {
		set["status_reason"] = reason
	}
	return set
}

// releaseBooking undoes the booking of an accepted or approved request. The
// asset is only written while it still carries this request's booking, so a
// later booking, even by the same buyer, is never touched.
func (s *Service) releaseBooking(ctx context.Context, offer *models.OfferRequest, target models.AssetStatus, set bson.M, rb *rollback) (*models.OfferRequest, error) {
	_, released, err := s.releaseBookedAsset(ctx, offer, target, rb)
	if err != nil {
		return nil, err
	}
	if !released && target == models.AssetPendingOffer {
		// The booking already ended; the request becomes active again, so it
		// must reclaim the asset.
		if _, err := s.holdAsset(ctx, offer.AssetID, rb); err != nil {
			return nil, err
		}
	}
	if released {
		if err := s.detachFromCampaign(ctx, offer, rb); err != nil {
			return nil, err
		}
	}
	return s.writeOffer(ctx, offer, database.Update{Set: set}, rb)
}
