package model

import (
	"time"

	"gorm.io/datatypes"
)

type ResponseSyncStatus string

const (
	ResponsePending ResponseSyncStatus = "pending"
	ResponseSynced  ResponseSyncStatus = "synced"
	ResponseFailed  ResponseSyncStatus = "failed"
	ResponsePartial ResponseSyncStatus = "partial"
)

// Response is one submission of a questionnaire. The pair
// (QuestionnaireID, ExternalResponseID) is unique.
// swagger:model QuestionnaireResponse
type Response struct {
	Record
	QuestionnaireID    uint               `gorm:"not null;uniqueIndex:idx_responses_dedup,priority:1" json:"questionnaireId"`
	ExternalResponseID *string            `gorm:"size:128;uniqueIndex:idx_responses_dedup,priority:2" json:"externalResponseId,omitempty"`
	RespondentID       *uint              `gorm:"index" json:"respondentId,omitempty"`
	RespondentEmail    string             `gorm:"size:255" json:"respondentEmail,omitempty"`
	Answers            datatypes.JSON     `json:"answers"`
	RawPayload         datatypes.JSON     `json:"-"`
	SubmittedAt        *time.Time         `json:"submittedAt,omitempty"`
	LastSyncedAt       *time.Time         `json:"lastSyncedAt,omitempty"`
	SyncStatus         ResponseSyncStatus `gorm:"size:20;default:'pending'" json:"syncStatus"`
}

func (Response) TableName() string {
	return "questionnaire_responses"
}
