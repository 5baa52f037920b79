// Package lifecycle holds the legal status transitions of assets, offer
// requests and campaigns, and the cross-entity invariants they preserve.
// Everything here is pure; the mediation service applies the results.
package lifecycle

import (
	"fmt"

	"beatspace/apperr"
	"beatspace/models"
)

// AssetEffect is the cascade an offer transition applies to its asset.
type AssetEffect int

const (
	AssetUnchanged AssetEffect = iota
	// AssetHold claims a free asset: Available -> Pending Offer.
	AssetHold
	// AssetNegotiate moves a held asset to Negotiating.
	AssetNegotiate
	// AssetBook makes the asset buyer-held (Live) and sets the buyer fields.
	AssetBook
	// AssetRelease returns the asset to Available and clears the buyer fields.
	AssetRelease
	// AssetRehold moves a booked asset back under offer hold, clearing the buyer fields.
	AssetRehold
)

func (e AssetEffect) String() string {
	switch e {
	case AssetHold:
		return "hold"
	case AssetNegotiate:
		return "negotiate"
	case AssetBook:
		return "book"
	case AssetRelease:
		return "release"
	case AssetRehold:
		return "rehold"
	default:
		return "unchanged"
	}
}

type RespondAction string

const (
	RespondAccept   RespondAction = "accept"
	RespondReject   RespondAction = "reject"
	RespondModify   RespondAction = "modify"
	RespondRevision RespondAction = "request_revision"
)

func (a RespondAction) Valid() bool {
	switch a {
	case RespondAccept, RespondReject, RespondModify, RespondRevision:
		return true
	}
	return false
}

// AdminSettable lists the statuses an admin may write directly.
var AdminSettable = []models.OfferStatus{
	models.OfferPending, models.OfferInProcess, models.OfferOnHold, models.OfferApproved, models.OfferRejected,
}

func IsAdminSettable(status models.OfferStatus) bool {
	for _, s := range AdminSettable {
		if s == status {
			return true
		}
	}
	return false
}

func invalid(format string, args ...any) error {
	return apperr.New(apperr.KindInvalidTransition, fmt.Sprintf(format, args...))
}

// CanEdit reports whether the buyer may still update or delete the request.
func CanEdit(status models.OfferStatus) error {
	if status != models.OfferPending {
		return apperr.ErrNotEditable
	}
	return nil
}

// Quote validates an admin quote on a request in the given status.
// Quoting never books, so the asset is moved to (or kept in) Negotiating.
func Quote(status models.OfferStatus) (AssetEffect, error) {
	if status.IsTerminal() {
		return AssetUnchanged, apperr.ErrRequestTerminal
	}
	if !status.IsActive() {
		return AssetUnchanged, invalid("cannot quote a request in status %q", status)
	}
	return AssetNegotiate, nil
}

// Respond maps a buyer's answer to a quote onto the next request status.
func Respond(status models.OfferStatus, action RespondAction) (models.OfferStatus, AssetEffect, error) {
	if !action.Valid() {
		return "", AssetUnchanged, apperr.New(apperr.KindValidation, fmt.Sprintf("unknown action %q", action))
	}
	if status != models.OfferQuoted {
		return "", AssetUnchanged, invalid("can only respond to a quoted request, status is %q", status)
	}
	switch action {
	case RespondAccept:
		return models.OfferAccepted, AssetBook, nil
	case RespondReject:
		return models.OfferRejected, AssetRelease, nil
	default:
		return models.OfferRevisionRequested, AssetUnchanged, nil
	}
}

// AdminSetStatus returns the asset cascade for an admin writing status to on
// a request currently in from.
func AdminSetStatus(from, to models.OfferStatus) (AssetEffect, error) {
	if !IsAdminSettable(to) {
		return AssetUnchanged, invalid("admin cannot set status %q", to)
	}
	switch {
	case from.IsActive():
		switch to {
		case models.OfferApproved:
			return AssetBook, nil
		case models.OfferRejected:
			return AssetRelease, nil
		default:
			return AssetUnchanged, nil
		}
	case from.IsBooked():
		switch to {
		case models.OfferApproved:
			// Re-approval re-applies the booking; every write in it is idempotent.
			return AssetBook, nil
		case models.OfferRejected:
			return AssetRelease, nil
		default:
			return AssetRehold, nil
		}
	case from == models.OfferRejected:
		switch to {
		case models.OfferRejected:
			return AssetUnchanged, nil
		case models.OfferApproved:
			return AssetBook, nil
		default:
			return AssetHold, nil
		}
	}
	return AssetUnchanged, invalid("unknown request status %q", from)
}
