package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// ListActivities returns the activity history of a contact, newest first.
// A limit <= 0 returns everything.
func (r *PostgresRepo) ListActivities(ctx context.Context, contactID string, limit int) ([]model.Activity, error) {
	var activities []model.Activity
	operation := func() error {
		q := r.db.WithContext(ctx).
			Where("contact_id = ?", contactID).
			Order("created_at DESC, id DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Find(&activities).Error; err != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "ListActivities", operation)
	observer.ObserveDbOperationDuration("list", "activity", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to list activities", zap.String("contact_id", contactID), zap.Error(err))
		return nil, err
	}
	if activities == nil {
		return []model.Activity{}, nil
	}
	return activities, nil
}
