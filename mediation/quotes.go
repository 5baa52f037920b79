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
	"beatspace/websocket"
)

type QuoteInput struct {
	QuotedPrice        float64    `json:"quoted_price"`
	AdminNotes         string     `json:"admin_notes"`
	TentativeStartDate *time.Time `json:"tentative_start_date"`
	TentativeEndDate   *time.Time `json:"tentative_end_date"`
}

type RespondInput struct {
	Action lifecycle.RespondAction `json:"action"`
	Reason string                  `json:"reason"`
}

// writeOffer updates the governing request, conditioned on the status it was
// read in, and registers the inverse write.
func (s *Service) writeOffer(ctx context.Context, offer *models.OfferRequest, update database.Update, rb *rollback) (*models.OfferRequest, error) {
	after, err := s.store.Offers.Transition(ctx, offer.ID, bson.M{"status": string(offer.Status)}, update)
	if errors.Is(err, store.ErrNoMatch) {
		return nil, s.staleOrMissing(ctx, offer.ID)
	}
	if err != nil {
		return nil, err
	}
	s.undoOffer(rb, offer, after, string(after.Status)+" -> "+string(offer.Status))
	return after, nil
}

// Quote prices a request. Every quote, even an identical one, advances
// quote_count.
func (s *Service) Quote(ctx context.Context, admin models.Principal, id string, in QuoteInput) (*models.OfferRequest, error) {
	if err := authz.Allow(admin, authz.MediateOffer, authz.Target{}); err != nil {
		return nil, err
	}
	if in.QuotedPrice <= 0 {
		return nil, apperr.New(apperr.KindValidation, "quoted_price must be positive")
	}
	if in.TentativeStartDate != nil && in.TentativeEndDate != nil && in.TentativeEndDate.Before(*in.TentativeStartDate) {
		return nil, apperr.New(apperr.KindValidation, "tentative_end_date must not be before tentative_start_date")
	}
	offer, err := s.store.Offers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := lifecycle.Quote(offer.Status); err != nil {
		return nil, err
	}
	quoted := *offer
	if in.TentativeStartDate != nil {
		quoted.TentativeStartDate = in.TentativeStartDate
	}
	if in.TentativeEndDate != nil {
		quoted.TentativeEndDate = in.TentativeEndDate
	}
	if _, _, err := lifecycle.ComputeWindow(quoted); err != nil {
		return nil, apperr.New(apperr.KindValidation, "tentative_end_date must not be before the booking start")
	}

	ctx = context.WithoutCancel(ctx)
	rb := s.newRollback("quote")
	asset, err := s.negotiateAsset(ctx, offer, rb)
	if err != nil {
		return nil, s.fail(ctx, rb, err)
	}

	now := s.timestamp()
	set := bson.M{
		"status":             string(models.OfferQuoted),
		"admin_quoted_price": in.QuotedPrice,
		"admin_notes":        in.AdminNotes,
		"quoted_at":          now,
		"revision_requested": false,
		"updated_at":         now,
	}
	if in.TentativeStartDate != nil {
		set["tentative_start_date"] = in.TentativeStartDate.UTC()
	}
	if in.TentativeEndDate != nil {
		set["tentative_end_date"] = in.TentativeEndDate.UTC()
	}
	updated, err := s.writeOffer(ctx, offer, database.Update{Set: set, Inc: bson.M{"quote_count": 1}}, rb)
	if err != nil {
		return nil, s.fail(ctx, rb, err)
	}
	if err := lifecycle.CheckQuote(*updated); err != nil {
		return nil, s.fail(ctx, rb, err)
	}
	if err := s.verifyAsset(ctx, asset.ID); err != nil {
		return nil, s.fail(ctx, rb, err)
	}

	s.audit(ctx, admin, "offer_quoted", "offer_request", id, string(offer.Status), string(updated.Status),
		map[string]interface{}{"quoted_price": in.QuotedPrice, "quote_count": updated.QuoteCount})
	s.toPrincipal(updated.BuyerEmail, websocket.EventOfferQuoted, map[string]interface{}{
		"offer_id":     updated.ID,
		"asset_id":     updated.AssetID,
		"asset_name":   updated.AssetName,
		"quoted_price": in.QuotedPrice,
		"admin_notes":  in.AdminNotes,
		"quote_count":  updated.QuoteCount,
		"status":       updated.Status,
	})
	s.logger.Info("offer quoted", "event", "offer_quoted", "offer_id", id, "quote_count", updated.QuoteCount)
	return updated, nil
}

// RespondToQuote applies the buyer's answer to a quoted request.
func (s *Service) RespondToQuote(ctx context.Context, buyer models.Principal, id string, in RespondInput) (*models.OfferRequest, error) {
	offer, err := s.store.Offers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Allow(buyer, authz.RespondToQuote, authz.Target{BuyerID: offer.BuyerID}); err != nil {
		return nil, err
	}
	in.Action = lifecycle.RespondAction(strings.ToLower(strings.TrimSpace(string(in.Action))))
	next, effect, err := lifecycle.Respond(offer.Status, in.Action)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	rb := s.newRollback("respond_to_quote")
	var updated *models.OfferRequest
	switch effect {
	case lifecycle.AssetBook:
		updated, err = s.book(ctx, offer, next, bookFromHold, "", rb)
	case lifecycle.AssetRelease:
		updated, err = s.releaseFromHold(ctx, offer, in.Reason, rb)
	default:
		now := s.timestamp()
		updated, err = s.writeOffer(ctx, offer, database.Update{Set: bson.M{
			"status":                string(next),
			"revision_requested":    true,
			"revision_requested_at": now,
			"revision_reason":       strings.TrimSpace(in.Reason),
			"updated_at":            now,
		}}, rb)
	}
	if err != nil {
		return nil, s.fail(ctx, rb, err)
	}
	if err := s.verifyAsset(ctx, offer.AssetID); err != nil {
		return nil, s.fail(ctx, rb, err)
	}

	s.audit(ctx, buyer, "quote_"+string(in.Action), "offer_request", id, string(offer.Status), string(updated.Status),
		map[string]interface{}{"reason": in.Reason})
	payload := map[string]interface{}{
		"offer_id":    updated.ID,
		"asset_id":    updated.AssetID,
		"asset_name":  updated.AssetName,
		"buyer_id":    updated.BuyerID,
		"buyer_name":  updated.BuyerName,
		"buyer_email": updated.BuyerEmail,
		"status":      updated.Status,
	}
	switch updated.Status {
	case models.OfferAccepted:
		payload["confirmed_start_date"] = updated.ConfirmedStartDate
		payload["confirmed_end_date"] = updated.ConfirmedEndDate
		s.toAdmins(websocket.EventOfferApproved, payload)
	case models.OfferRejected:
		payload["reason"] = in.Reason
		s.toAdmins(websocket.EventOfferRejected, payload)
	default:
		payload["revision_reason"] = updated.RevisionReason
		payload["quote_count"] = updated.QuoteCount
		s.toAdmins(websocket.EventRevisionRequested, payload)
	}
	s.logger.Info("quote answered", "event", "quote_answered", "offer_id", id, "action", in.Action, "status", updated.Status)
	return updated, nil
}

// book runs the booking cascade: asset, then campaign, then the request.
func (s *Service) book(ctx context.Context, offer *models.OfferRequest, target models.OfferStatus, src bookSource, reason string, rb *rollback) (*models.OfferRequest, error) {
	start, end, err := lifecycle.ComputeWindow(*offer)
	if err != nil {
		return nil, err
	}
	asset, err := s.bookAsset(ctx, offer, end, src, rb)
	if err != nil {
		return nil, err
	}
	if err := s.attachToCampaign(ctx, offer, asset, start, end, rb); err != nil {
		return nil, err
	}
	set := bson.M{
		"status":               string(target),
		"confirmed_start_date": start,
		"confirmed_end_date":   end,
		"updated_at":           s.timestamp(),
	}
	if reason != "" {
		set["status_reason"] = reason
	}
	updated, err := s.writeOffer(ctx, offer, database.Update{Set: set}, rb)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckWindow(*updated, *asset); err != nil {
		return nil, err
	}
	return updated, nil
}

// releaseFromHold rejects an active request and frees its asset.
func (s *Service) releaseFromHold(ctx context.Context, offer *models.OfferRequest, reason string, rb *rollback) (*models.OfferRequest, error) {
	if _, err := s.releaseHeldAsset(ctx, offer, rb); err != nil {
		return nil, err
	}
	return s.writeOffer(ctx, offer, database.Update{Set: rejectSet(reason, s.timestamp())}, rb)
}

func rejectSet(reason string, now time.Time) bson.M {
	set := bson.M{"status": string(models.OfferRejected), "updated_at": now}
	if reason = strings.TrimSpace(reason); reason != "" {
		set["status_reason"] = reason
	}
	return set
}
