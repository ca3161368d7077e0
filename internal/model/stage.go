package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
)

// Stage is a contact's position in the sales pipeline.
type Stage string

const (
	StageNew         Stage = "new"
	StageContacted   Stage = "contacted"
	StageQualified   Stage = "qualified"
	StageViewing     Stage = "viewing"
	StageScheduling  Stage = "scheduling"
	StageNegotiating Stage = "negotiating"
	StageClosed      Stage = "closed"
	StageLost        Stage = "lost"
)

// legacyStages maps strings written by older call sites onto the canonical vocabulary.
var legacyStages = map[string]Stage{
	"qualifying":         StageQualified,
	"viewing_properties": StageViewing,
}

// AllStages returns the canonical stages in pipeline display order.
func AllStages() []Stage {
	return []Stage{
		StageNew, StageContacted, StageQualified, StageViewing,
		StageScheduling, StageNegotiating, StageClosed, StageLost,
	}
}

// IsValid reports whether s is one of the canonical stages.
func (s Stage) IsValid() bool {
	switch s {
	case StageNew, StageContacted, StageQualified, StageViewing,
		StageScheduling, StageNegotiating, StageClosed, StageLost:
		return true
	}
	return false
}

// IsTerminal reports whether the stage ends the pipeline. Used for display only.
func (s Stage) IsTerminal() bool {
	return s == StageClosed || s == StageLost
}

// NormalizeStage maps legacy aliases onto the canonical vocabulary.
// Unknown values are returned unchanged.
func NormalizeStage(raw string) Stage {
	v := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := legacyStages[v]; ok {
		return canonical
	}
	return Stage(v)
}

// ParseStage normalizes raw and rejects anything outside the canonical vocabulary.
func ParseStage(raw string) (Stage, error) {
	s := NormalizeStage(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown stage %q", apperrors.ErrValidation, raw)
	}
	return s, nil
}

// Scan implements sql.Scanner, normalizing legacy values on read.
func (s *Stage) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = ""
	case string:
		*s = NormalizeStage(v)
	case []byte:
		*s = NormalizeStage(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Stage", value)
	}
	return nil
}

// UnmarshalJSON normalizes legacy values, so stages embedded in jsonb
// documents read the same as stages scanned from a column.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cannot decode stage: %w", err)
	}
	*s = NormalizeStage(raw)
	return nil
}

// Value implements driver.Valuer.
func (s Stage) Value() (driver.Value, error) {
	if s == "" {
		return nil, nil
	}
	return string(s), nil
}

// StoredValues returns every string that denotes s in storage, including
// legacy aliases, so filters keep matching rows written before normalization.
func (s Stage) StoredValues() []string {
	values := []string{string(s)}
	for legacy, canonical := range legacyStages {
		if canonical == s {
			values = append(values, legacy)
		}
	}
	return values
}
