package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// FindCampaignByID finds a campaign by its ID.
func (r *PostgresRepo) FindCampaignByID(ctx context.Context, id string) (*model.Campaign, error) {
	var campaign model.Campaign
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: campaign %s", apperrors.ErrNotFound, id)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindCampaignByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "campaign", time.Since(startTime), err)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find campaign after retries", zap.String("campaign_id", id), zap.Error(err))
		return nil, err
	}
	return &campaign, nil
}

// MarkCampaignActive moves a draft or active campaign to active and stamps
// launched_at. It reports false when the campaign is in any other state.
func (r *PostgresRepo) MarkCampaignActive(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.updateCampaignStatus(ctx, "mark_active", id,
		[]model.CampaignStatus{model.CampaignDraft, model.CampaignActive},
		map[string]interface{}{"status": model.CampaignActive, "launched_at": at, "updated_at": at})
}

// MarkCampaignCompleted moves an active campaign to completed.
func (r *PostgresRepo) MarkCampaignCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.updateCampaignStatus(ctx, "mark_completed", id,
		[]model.CampaignStatus{model.CampaignActive},
		map[string]interface{}{"status": model.CampaignCompleted, "completed_at": at, "updated_at": at})
}

func (r *PostgresRepo) updateCampaignStatus(ctx context.Context, opName, id string, from []model.CampaignStatus, values map[string]interface{}) (bool, error) {
	fromValues := make([]string, len(from))
	for i, s := range from {
		fromValues[i] = string(s)
	}

	var applied bool
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Campaign{}).
			Where("id = ? AND status IN ?", id, fromValues).
			Updates(values)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		applied = result.RowsAffected > 0
		return nil
	}

	policy := newRetryPolicy(ctx, defaultRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, policy, opName, operation)
	observer.ObserveDbOperationDuration(opName, "campaign", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to update campaign status", zap.String("campaign_id", id), zap.String("operation", opName), zap.Error(err))
		return false, err
	}
	return applied, nil
}

// ClaimDueCampaigns atomically flips scheduled draft campaigns whose time has
// come to active and returns them. A campaign is claimed by exactly one caller.
func (r *PostgresRepo) ClaimDueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	var claimed []model.Campaign
	operation := func() error {
		claimed = nil
		result := r.db.WithContext(ctx).Model(&claimed).
			Clauses(clause.Returning{}).
			Where("status = ? AND schedule_type = ? AND scheduled_at <= ?", model.CampaignDraft, model.ScheduleScheduled, now).
			Updates(map[string]interface{}{"status": model.CampaignActive, "launched_at": now, "updated_at": now})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	policy := newRetryPolicy(ctx, defaultRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, policy, "ClaimDueCampaigns", operation)
	observer.ObserveDbOperationDuration("claim_due", "campaign", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to claim due campaigns", zap.Error(err))
		return nil, err
	}
	return claimed, nil
}

// FindCampaignMessage finds the delivery record of one contact in one campaign.
func (r *PostgresRepo) FindCampaignMessage(ctx context.Context, campaignID, contactID string) (*model.CampaignMessage, error) {
	return r.findCampaignMessage(ctx, "find_by_pair", "campaign_id = ? AND contact_id = ?", campaignID, contactID)
}

// FindCampaignMessageByProviderID finds the campaign delivery record for a provider message ID.
func (r *PostgresRepo) FindCampaignMessageByProviderID(ctx context.Context, providerID string) (*model.CampaignMessage, error) {
	return r.findCampaignMessage(ctx, "find_by_provider_id", "provider_message_id = ?", providerID)
}

func (r *PostgresRepo) findCampaignMessage(ctx context.Context, opName, where string, args ...interface{}) (*model.CampaignMessage, error) {
	var cm model.CampaignMessage
	operation := func() error {
		result := r.db.WithContext(ctx).Where(where, args...).First(&cm)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: campaign message", apperrors.ErrNotFound)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, opName, operation)
	observer.ObserveDbOperationDuration(opName, "campaign_message", time.Since(startTime), err)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &cm, nil
}

// UpsertCampaignMessage writes the delivery outcome of a recipient. The
// (campaign_id, contact_id) pair is unique, so relaunches update in place.
func (r *PostgresRepo) UpsertCampaignMessage(ctx context.Context, cm *model.CampaignMessage) error {
	now := utils.Now()
	if cm.CreatedAt.IsZero() {
		cm.CreatedAt = now
	}
	cm.UpdatedAt = now

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}, {Name: "contact_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"provider_message_id", "status", "sent_at", "error_detail", "updated_at",
			}),
		}).Create(cm)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "UpsertCampaignMessage", operation)
	observer.ObserveDbOperationDuration("upsert", "campaign_message", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to upsert campaign message",
			zap.String("campaign_id", cm.CampaignID),
			zap.String("contact_id", cm.ContactID),
			zap.Error(err))
		return err
	}
	return nil
}

// ApplyCampaignMessageStatus moves a campaign delivery record forward in the
// lattice, stamping delivered_at/read_at. It reports false when nothing changed.
func (r *PostgresRepo) ApplyCampaignMessageStatus(ctx context.Context, providerID string, status model.DeliveryStatus, at time.Time, errorDetail string) (bool, error) {
	values := map[string]interface{}{"status": status, "updated_at": utils.Now()}
	switch status {
	case model.StatusDelivered:
		values["delivered_at"] = at
	case model.StatusRead:
		values["read_at"] = at
		// A read implies delivery even when the delivered callback never arrived.
		values["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", at)
	case model.StatusFailed:
		values["error_detail"] = errorDetail
	}

	var applied bool
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.CampaignMessage{}).
			Where("provider_message_id = ? AND status IN ?", providerID, statusStrings(model.PrecedingStatuses(status))).
			Updates(values)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		applied = result.RowsAffected > 0
		return nil
	}

	policy := newRetryPolicy(ctx, defaultRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, policy, "ApplyCampaignMessageStatus", operation)
	observer.ObserveDbOperationDuration("apply_status", "campaign_message", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to apply campaign message status",
			zap.String("provider_message_id", providerID),
			zap.Error(err))
		return false, err
	}
	return applied, nil
}

// RecordCampaignEvent appends an analytics event and, only when the row is
// new, increments the matching campaign counter. Replays report false.
func (r *PostgresRepo) RecordCampaignEvent(ctx context.Context, event *model.CampaignEvent) (bool, error) {
	column := event.EventType.CounterColumn()
	if column == "" {
		return false, fmt.Errorf("%w: event type %q has no counter", apperrors.ErrValidation, event.EventType)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = utils.Now()
	}
	event.CreatedAt = utils.Now()

	var inserted bool
	operation := func() error {
		inserted = false
		return r.withTransaction(ctx, func(tx *gorm.DB) error {
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "provider_message_id"}, {Name: "event_type"}},
				DoNothing: true,
			}).Create(event)
			if result.Error != nil {
				return checkConstraintViolation(result.Error)
			}
			if result.RowsAffected == 0 {
				return nil
			}

			update := tx.Model(&model.Campaign{}).
				Where("id = ?", event.CampaignID).
				Updates(map[string]interface{}{
					column:       gorm.Expr(column + " + 1"),
					"updated_at": utils.Now(),
				})
			if update.Error != nil {
				return checkConstraintViolation(update.Error)
			}
			inserted = true
			return nil
		})
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "RecordCampaignEvent", operation)
	observer.ObserveDbOperationDuration("record_event", "campaign_event", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to record campaign event",
			zap.String("campaign_id", event.CampaignID),
			zap.String("event_type", string(event.EventType)),
			zap.Error(err))
		return false, err
	}
	return inserted, nil
}
