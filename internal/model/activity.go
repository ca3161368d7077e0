package model

import (
	"time"
)

const (
	ActivityStageChange = "stage_change"

	ActorSystem   = "system"
	ActorOperator = "operator"
)

// Activity is an append-only record of something that happened to a contact.
type Activity struct {
	ID        int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ContactID string    `json:"contact_id" gorm:"column:contact_id;type:text;not null;index"`
	Type      string    `json:"type" gorm:"column:type;type:text;not null"`
	OldStage  Stage     `json:"old_stage,omitempty" gorm:"column:old_stage;type:text"`
	NewStage  Stage     `json:"new_stage,omitempty" gorm:"column:new_stage;type:text"`
	Notes     string    `json:"notes,omitempty" gorm:"column:notes;type:text"`
	Actor     string    `json:"actor" gorm:"column:actor;type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	Contact *Contact `json:"-" gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Activity model.
func (Activity) TableName() string {
	return "activities"
}

// StageChange is the outcome of a stage transition.
type StageChange struct {
	ContactID string    `json:"contact_id"`
	OldStage  Stage     `json:"old_stage"`
	NewStage  Stage     `json:"new_stage"`
	Changed   bool      `json:"changed"`
	Activity  *Activity `json:"activity,omitempty"`
}
