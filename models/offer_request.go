// models/offer_request.go
package models

import (
	"time"
)

type OfferStatus string

const (
	OfferPending           OfferStatus = "Pending"
	OfferInProcess         OfferStatus = "In Process"
	OfferOnHold            OfferStatus = "On Hold"
	OfferQuoted            OfferStatus = "Quoted"
	OfferRevisionRequested OfferStatus = "Revision Requested"
	OfferAccepted          OfferStatus = "Accepted"
	OfferRejected          OfferStatus = "Rejected"
	OfferApproved          OfferStatus = "Approved"
)

// ActiveOfferStatuses hold an asset in Pending Offer or Negotiating.
var ActiveOfferStatuses = []OfferStatus{OfferPending, OfferInProcess, OfferOnHold, OfferQuoted, OfferRevisionRequested}

func (s OfferStatus) IsActive() bool {
	for _, active := range ActiveOfferStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// IsBooked reports whether the request put its asset in a buyer-held status.
func (s OfferStatus) IsBooked() bool {
	return s == OfferAccepted || s == OfferApproved
}

func (s OfferStatus) IsTerminal() bool {
	return s == OfferAccepted || s == OfferApproved || s == OfferRejected
}

func (s OfferStatus) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

type CampaignType string

const (
	CampaignTypeNew      CampaignType = "new"
	CampaignTypeExisting CampaignType = "existing"
)

type ServiceBundles struct {
	Printing   bool `bson:"printing" json:"printing"`
	Setup      bool `bson:"setup" json:"setup"`
	Monitoring bool `bson:"monitoring" json:"monitoring"`
}

type OfferRequest struct {
	ID                  string         `bson:"id" json:"id"`
	BuyerID             string         `bson:"buyer_id" json:"buyer_id"`
	BuyerName           string         `bson:"buyer_name" json:"buyer_name"`
	BuyerEmail          string         `bson:"buyer_email" json:"buyer_email"`
	AssetID             string         `bson:"asset_id" json:"asset_id"`
	AssetName           string         `bson:"asset_name" json:"asset_name"`
	CampaignName        string         `bson:"campaign_name" json:"campaign_name"`
	CampaignType        CampaignType   `bson:"campaign_type" json:"campaign_type"`
	ExistingCampaignID  *string        `bson:"existing_campaign_id,omitempty" json:"existing_campaign_id"`
	ContractDuration    string         `bson:"contract_duration" json:"contract_duration"`
	EstimatedBudget     *float64       `bson:"estimated_budget,omitempty" json:"estimated_budget"`
	ServiceBundles      ServiceBundles `bson:"service_bundles" json:"service_bundles"`
	Timeline            string         `bson:"timeline,omitempty" json:"timeline,omitempty"`
	SpecialRequirements string         `bson:"special_requirements,omitempty" json:"special_requirements,omitempty"`
	Notes               string         `bson:"notes,omitempty" json:"notes,omitempty"`
	AssetStartDate      *time.Time     `bson:"asset_start_date,omitempty" json:"asset_start_date"`
	AssetExpirationDate *time.Time     `bson:"asset_expiration_date,omitempty" json:"asset_expiration_date"`
	Status              OfferStatus    `bson:"status" json:"status"`
	AdminQuotedPrice    *float64       `bson:"admin_quoted_price,omitempty" json:"admin_quoted_price"`
	AdminNotes          string         `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	QuoteCount          int            `bson:"quote_count" json:"quote_count"`
	TentativeStartDate  *time.Time     `bson:"tentative_start_date,omitempty" json:"tentative_start_date"`
	TentativeEndDate    *time.Time     `bson:"tentative_end_date,omitempty" json:"tentative_end_date"`
	ConfirmedStartDate  *time.Time     `bson:"confirmed_start_date,omitempty" json:"confirmed_start_date"`
	ConfirmedEndDate    *time.Time     `bson:"confirmed_end_date,omitempty" json:"confirmed_end_date"`
	RevisionRequested   bool           `bson:"revision_requested" json:"revision_requested"`
	RevisionRequestedAt *time.Time     `bson:"revision_requested_at,omitempty" json:"revision_requested_at"`
	RevisionReason      string         `bson:"revision_reason,omitempty" json:"revision_reason,omitempty"`
	StatusReason        string         `bson:"status_reason,omitempty" json:"status_reason,omitempty"`
	CreatedAt           time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `bson:"updated_at" json:"updated_at"`
	QuotedAt            *time.Time     `bson:"quoted_at,omitempty" json:"quoted_at"`
}
