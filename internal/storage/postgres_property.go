package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// FindPropertyByID finds a property listing by its ID.
func (r *PostgresRepo) FindPropertyByID(ctx context.Context, id string) (*model.Property, error) {
	var property model.Property
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&property)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: property %s", apperrors.ErrNotFound, id)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindPropertyByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "property", time.Since(startTime), err)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &property, nil
}
