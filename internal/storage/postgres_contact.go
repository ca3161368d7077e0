package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

// FindContactByID finds a contact by its ID.
func (r *PostgresRepo) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	return r.findContact(ctx, "find_by_id", "id = ?", id)
}

// FindContactByPhone finds a contact by its phone number.
func (r *PostgresRepo) FindContactByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	return r.findContact(ctx, "find_by_phone", "phone = ?", phone)
}

func (r *PostgresRepo) findContact(ctx context.Context, opName, where string, arg string) (*model.Contact, error) {
	var contact model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).Where(where, arg).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact %s: %w", apperrors.ErrNotFound, arg, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, opName, operation)
	observer.ObserveDbOperationDuration(opName, "contact", time.Since(startTime), findErr)

	if findErr != nil {
		if apperrors.IsNotFoundError(findErr) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find contact after retries",
			zap.String("operation", opName),
			zap.String("key", arg),
			zap.Error(findErr))
		return nil, findErr
	}
	return &contact, nil
}

// FindOrCreateContact returns the contact owning phone, creating it with the
// given defaults when absent. Concurrent creations for the same phone resolve
// to a single row through the unique phone constraint.
func (r *PostgresRepo) FindOrCreateContact(ctx context.Context, candidate model.Contact) (*model.Contact, bool, error) {
	existing, err := r.FindContactByPhone(ctx, candidate.Phone)
	if err == nil {
		return existing, false, nil
	}
	if !apperrors.IsNotFoundError(err) {
		return nil, false, err
	}

	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	if candidate.Stage == "" {
		candidate.Stage = model.StageNew
	}
	now := utils.Now()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	var inserted int64
	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			DoNothing: true,
		}).Create(&candidate)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		inserted = result.RowsAffected
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	createErr := retryableOperation(ctx, commitPolicy, "CreateContact", operation)
	observer.ObserveDbOperationDuration("create", "contact", time.Since(startTime), createErr)
	if createErr != nil {
		logger.FromContext(ctx).Error("Failed to create contact after retries", zap.String("phone", candidate.Phone), zap.Error(createErr))
		return nil, false, createErr
	}

	if inserted == 0 {
		// Lost the race to a concurrent webhook delivery; use the winner's row.
		winner, err := r.FindContactByPhone(ctx, candidate.Phone)
		if err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}
	return &candidate, true, nil
}

// TouchContact moves last_contact_at forward to at. Older timestamps never
// move it backwards.
func (r *PostgresRepo) TouchContact(ctx context.Context, contactID string, at time.Time) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Exec(
			`UPDATE contacts SET last_contact_at = GREATEST(COALESCE(last_contact_at, ?), ?), updated_at = ? WHERE id = ?`,
			at, at, utils.Now(), contactID,
		)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, contactID)
		}
		return nil
	}

	policy := newRetryPolicy(ctx, defaultRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, policy, "TouchContact", operation)
	observer.ObserveDbOperationDuration("touch", "contact", time.Since(startTime), err)
	return err
}

// UpdateContactIntent records the intent picked from the qualification menu.
func (r *PostgresRepo) UpdateContactIntent(ctx context.Context, contactID, intent string) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Contact{}).
			Where("id = ?", contactID).
			Updates(map[string]interface{}{"intent": intent, "updated_at": utils.Now()})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, contactID)
		}
		return nil
	}

	policy := newRetryPolicy(ctx, defaultRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, policy, "UpdateContactIntent", operation)
	observer.ObserveDbOperationDuration("update_intent", "contact", time.Since(startTime), err)
	return err
}

// TransitionStage locks the contact row, writes the new stage and appends
// exactly one stage_change activity, all in one transaction. Setting the
// current stage again changes nothing.
func (r *PostgresRepo) TransitionStage(ctx context.Context, contactID string, newStage model.Stage, notes, actor string) (*model.StageChange, error) {
	var change *model.StageChange

	operation := func() error {
		return r.withTransaction(ctx, func(tx *gorm.DB) error {
			var contact model.Contact
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", contactID).
				First(&contact).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, contactID)
				}
				return fmt.Errorf("%w: failed to lock contact row: %w", apperrors.ErrDatabase, err)
			}

			change = &model.StageChange{ContactID: contactID, OldStage: contact.Stage, NewStage: newStage}
			if contact.Stage == newStage {
				return nil
			}

			now := utils.Now()
			update := tx.Model(&model.Contact{}).
				Where("id = ?", contactID).
				Updates(map[string]interface{}{"stage": newStage, "updated_at": now})
			if update.Error != nil {
				return checkConstraintViolation(update.Error)
			}

			activity := model.Activity{
				ContactID: contactID,
				Type:      model.ActivityStageChange,
				OldStage:  contact.Stage,
				NewStage:  newStage,
				Notes:     notes,
				Actor:     actor,
				CreatedAt: now,
			}
			if err := tx.Create(&activity).Error; err != nil {
				return checkConstraintViolation(err)
			}

			change.Changed = true
			change.Activity = &activity
			return nil
		})
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "TransitionStage", operation)
	observer.ObserveDbOperationDuration("transition_stage", "contact", time.Since(startTime), err)
	if err != nil {
		if !apperrors.IsNotFoundError(err) {
			logger.FromContext(ctx).Error("Failed to transition stage after retries",
				zap.String("contact_id", contactID),
				zap.String("stage", string(newStage)),
				zap.Error(err))
		}
		return nil, err
	}
	return change, nil
}

// FindAudience resolves the contacts matched by a campaign audience filter,
// most recently contacted first. Contacts without a phone are never included.
func (r *PostgresRepo) FindAudience(ctx context.Context, filter model.AudienceFilter) ([]model.Contact, error) {
	var contacts []model.Contact
	operation := func() error {
		q := r.db.WithContext(ctx).
			Where("phone IS NOT NULL AND phone <> ''")
		if filter.Stage != "" {
			q = q.Where("stage IN ?", model.NormalizeStage(string(filter.Stage)).StoredValues())
		}
		if loc := strings.TrimSpace(filter.Location); loc != "" {
			q = q.Where("preferred_location ILIKE ?", "%"+escapeLike(loc)+"%")
		}
		if filter.BudgetMin != nil {
			q = q.Where("COALESCE(budget_max, budget_min) >= ?", *filter.BudgetMin)
		}
		if filter.BudgetMax != nil {
			q = q.Where("COALESCE(budget_min, budget_max) <= ?", *filter.BudgetMax)
		}
		result := q.Order("last_contact_at DESC NULLS LAST").Find(&contacts)
		if result.Error != nil {
			return fmt.Errorf("%w: audience query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindAudience", operation)
	observer.ObserveDbOperationDuration("find_audience", "contact", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to resolve campaign audience", zap.Error(err))
		return nil, err
	}
	if contacts == nil {
		return []model.Contact{}, nil
	}
	return contacts, nil
}

// escapeLike escapes LIKE wildcards so operator input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
