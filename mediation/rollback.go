package mediation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"beatspace/database"
	"beatspace/models"
	"beatspace/store"
)

// undoStep reverses one committed write.
type undoStep struct {
	entity   string
	id       string
	intended string
	run      func(ctx context.Context) error
}

// rollback collects compensations for the writes of one verb.
type rollback struct {
	logger *slog.Logger
	verb   string
	steps  []undoStep
}

func (s *Service) newRollback(verb string) *rollback {
	return &rollback{logger: s.logger, verb: verb}
}

func (r *rollback) add(entity, id, intended string, run func(ctx context.Context) error) {
	r.steps = append(r.steps, undoStep{entity: entity, id: id, intended: intended, run: run})
}

// undo runs the compensations newest first. A failed compensation is logged
// with enough context to reconcile by hand and does not stop the others.
func (r *rollback) undo(ctx context.Context, cause error) {
	for i := len(r.steps) - 1; i >= 0; i-- {
		step := r.steps[i]
		if err := step.run(ctx); err != nil {
			r.logger.Error("compensation failed",
				"event", "compensation_failed",
				"verb", r.verb,
				"entity", step.entity,
				"entity_id", step.id,
				"intended", step.intended,
				"cause", cause,
				"error", err,
			)
			continue
		}
		r.logger.Warn("write compensated",
			"event", "compensated",
			"verb", r.verb,
			"entity", step.entity,
			"entity_id", step.id,
			"intended", step.intended,
			"cause", cause,
		)
	}
	r.steps = nil
}

// restoreUpdate builds the update that turns after back into before.
func restoreUpdate(before, after interface{}) (database.Update, error) {
	beforeDoc, err := toDoc(before)
	if err != nil {
		return database.Update{}, err
	}
	afterDoc, err := toDoc(after)
	if err != nil {
		return database.Update{}, err
	}
	update := database.Update{Set: beforeDoc}
	for key := range afterDoc {
		if _, ok := beforeDoc[key]; !ok {
			update.Unset = append(update.Unset, key)
		}
	}
	return update, nil
}

func toDoc(v interface{}) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return doc, nil
}

// compensation restores before, provided the document still is exactly the
// version this verb wrote.
func compensation[T any](transition func(context.Context, string, bson.M, database.Update) (*T, error), observe func(context.Context) string, id string, before, after *T, status string, updatedAt time.Time) func(context.Context) error {
	return func(ctx context.Context) error {
		update, err := restoreUpdate(before, after)
		if err != nil {
			return err
		}
		_, err = transition(ctx, id, bson.M{"status": status, "updated_at": updatedAt}, update)
		if errors.Is(err, store.ErrNoMatch) {
			return fmt.Errorf("expected status %q, observed %s", status, observe(ctx))
		}
		return err
	}
}

func (s *Service) undoAsset(rb *rollback, before, after *models.Asset, intended string) {
	observe := func(ctx context.Context) string {
		asset, err := s.store.Assets.Get(ctx, after.ID)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("status %q buyer %q", asset.Status, deref(asset.BuyerID))
	}
	rb.add("asset", after.ID, intended,
		compensation(s.store.Assets.Transition, observe, after.ID, before, after, string(after.Status), after.UpdatedAt))
}

func (s *Service) undoOffer(rb *rollback, before, after *models.OfferRequest, intended string) {
	observe := func(ctx context.Context) string {
		offer, err := s.store.Offers.Get(ctx, after.ID)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("status %q", offer.Status)
	}
	rb.add("offer_request", after.ID, intended,
		compensation(s.store.Offers.Transition, observe, after.ID, before, after, string(after.Status), after.UpdatedAt))
}

func (s *Service) undoCampaign(rb *rollback, before, after *models.Campaign, intended string) {
	observe := func(ctx context.Context) string {
		campaign, err := s.store.Campaigns.Get(ctx, after.ID)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("status %q with %d binding(s)", campaign.Status, len(campaign.CampaignAssets))
	}
	rb.add("campaign", after.ID, intended,
		compensation(s.store.Campaigns.Transition, observe, after.ID, before, after, string(after.Status), after.UpdatedAt))
}
