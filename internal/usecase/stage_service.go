package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/internal/realtime"
	"gitlab.com/timkado/api/wa-property-crm/internal/storage"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

const (
	defaultBulkConcurrency = 8
	maxHistoryEntries      = 200
)

// BulkResult summarizes a bulk stage update.
type BulkResult struct {
	Updated int            `json:"updated"`
	Failed  int            `json:"failed"`
	Errors  []ContactError `json:"errors"`
}

// ContactError is a per-contact failure inside a bulk operation.
type ContactError struct {
	ContactID string `json:"contact_id"`
	Error     string `json:"error"`
}

// StageService moves contacts through the sales pipeline.
type StageService struct {
	contacts        storage.ContactRepo
	activities      storage.ActivityRepo
	publisher       realtime.Publisher
	bulkConcurrency int
}

// NewStageService creates a new stage service
func NewStageService(contacts storage.ContactRepo, activities storage.ActivityRepo, publisher realtime.Publisher) *StageService {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	return &StageService{
		contacts:        contacts,
		activities:      activities,
		publisher:       publisher,
		bulkConcurrency: defaultBulkConcurrency,
	}
}

// Transition sets the contact's stage and records one activity for the change.
// Setting the current stage again is a no-op.
func (s *StageService) Transition(ctx context.Context, contactID, stage, notes, actor string) (*model.StageChange, error) {
	contactID = strings.TrimSpace(contactID)
	if contactID == "" {
		return nil, fmt.Errorf("%w: contact id is required", apperrors.ErrValidation)
	}
	target, err := model.ParseStage(stage)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, contactID, target, notes, actor)
}

func (s *StageService) transition(ctx context.Context, contactID string, target model.Stage, notes, actor string) (*model.StageChange, error) {
	if actor == "" {
		actor = model.ActorOperator
	}
	change, err := s.contacts.TransitionStage(ctx, contactID, target, strings.TrimSpace(notes), actor)
	if err != nil {
		return nil, err
	}
	if !change.Changed {
		logger.FromContext(ctx).Debug("Stage unchanged",
			zap.String("contact_id", contactID),
			zap.String("stage", string(target)))
		return change, nil
	}

	observer.IncStageTransition(string(change.NewStage), actor)
	s.publisher.Publish(ctx, model.TopicStageChange, model.StageChangeEvent{
		ContactID: contactID,
		OldStage:  change.OldStage,
		NewStage:  change.NewStage,
		Actor:     actor,
	})
	logger.FromContext(ctx).Info("Contact stage changed",
		zap.String("contact_id", contactID),
		zap.String("old_stage", string(change.OldStage)),
		zap.String("new_stage", string(change.NewStage)),
		zap.String("actor", actor))
	return change, nil
}

// BulkTransition applies the same stage to many contacts. Each contact is
// handled independently; one failure never affects the others.
func (s *StageService) BulkTransition(ctx context.Context, contactIDs []string, stage, notes, actor string) (*BulkResult, error) {
	target, err := model.ParseStage(stage)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(contactIDs))
	seen := make(map[string]struct{}, len(contactIDs))
	for _, id := range contactIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: contact_ids must not be empty", apperrors.ErrValidation)
	}

	mapper := iter.Mapper[string, error]{MaxGoroutines: s.bulkConcurrency}
	errs := mapper.Map(ids, func(id *string) error {
		_, err := s.transition(ctx, *id, target, notes, actor)
		return err
	})

	result := &BulkResult{Errors: []ContactError{}}
	for i, err := range errs {
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ContactError{ContactID: ids[i], Error: err.Error()})
			continue
		}
		result.Updated++
	}

	logger.FromContext(ctx).Info("Bulk stage update finished",
		zap.String("stage", string(target)),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed))
	return result, nil
}

// History returns the contact's activities, newest first.
func (s *StageService) History(ctx context.Context, contactID string, limit int) ([]model.Activity, error) {
	if _, err := s.contacts.FindByID(ctx, contactID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistoryEntries {
		limit = maxHistoryEntries
	}
	return s.activities.ListByContact(ctx, contactID, limit)
}
