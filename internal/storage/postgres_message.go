package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// SaveMessage inserts a message. A repeated provider message ID fails with
// apperrors.ErrDuplicate and leaves the stored row untouched.
func (r *PostgresRepo) SaveMessage(ctx context.Context, message *model.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = utils.Now()
	}

	operation := func() error {
		if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "SaveMessage", operation)
	observer.ObserveDbOperationDuration("insert", "message", time.Since(startTime), err)

	if err != nil {
		if apperrors.IsDuplicateError(err) {
			return err
		}
		logger.FromContext(ctx).Error("Failed to save message after retries",
			zap.String("provider_message_id", message.ProviderMessageID),
			zap.Error(err))
		return err
	}
	return nil
}

// FindMessageByProviderID finds a message by the ID the provider assigned to it.
func (r *PostgresRepo) FindMessageByProviderID(ctx context.Context, providerID string) (*model.Message, error) {
	var message model.Message
	operation := func() error {
		result := r.db.WithContext(ctx).Where("provider_message_id = ?", providerID).First(&message)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, providerID)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindMessageByProviderID", operation)
	observer.ObserveDbOperationDuration("find_by_provider_id", "message", time.Since(startTime), err)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &message, nil
}

// ApplyMessageStatus moves a message forward in the delivery lattice.
// It reports false when the stored status is already at or past status.
func (r *PostgresRepo) ApplyMessageStatus(ctx context.Context, providerID string, status model.DeliveryStatus, at time.Time) (bool, error) {
	var applied bool
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Message{}).
			Where("provider_message_id = ? AND (status IS NULL OR status IN ?)", providerID, statusStrings(model.PrecedingStatuses(status))).
			Updates(map[string]interface{}{"status": status, "status_at": at})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		applied = result.RowsAffected > 0
		return nil
	}

	policy := newRetryPolicy(ctx, defaultRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, policy, "ApplyMessageStatus", operation)
	observer.ObserveDbOperationDuration("apply_status", "message", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to apply message status",
			zap.String("provider_message_id", providerID),
			zap.String("status", string(status)),
			zap.Error(err))
		return false, err
	}
	return applied, nil
}

func statusStrings(statuses []model.DeliveryStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
