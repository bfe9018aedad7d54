package model

import "time"

type SyncRunType string

const (
	RunManual    SyncRunType = "manual"
	RunAutomatic SyncRunType = "automatic"
	RunScheduled SyncRunType = "scheduled"
)

func (t SyncRunType) Valid() bool {
	return t == RunManual || t == RunAutomatic || t == RunScheduled
}

type SyncRunStatus string

const (
	SyncInProgress SyncRunStatus = "in_progress"
	SyncCompleted  SyncRunStatus = "completed"
	SyncFailed     SyncRunStatus = "failed"
	SyncPartial    SyncRunStatus = "partial"
)

// SyncLog records one ingestion run. A row left in_progress belongs to a run
// that never reached its terminal write.
// swagger:model SyncLog
type SyncLog struct {
	Record
	QuestionnaireID uint          `gorm:"index;not null" json:"questionnaireId"`
	TriggeredBy     uint          `gorm:"index" json:"triggeredBy"`
	RunType         SyncRunType   `gorm:"size:20;not null" json:"runType"`
	Status          SyncRunStatus `gorm:"size:20;not null;default:'in_progress'" json:"status"`
	FetchedCount    int           `gorm:"default:0" json:"fetched"`
	NewCount        int           `gorm:"default:0" json:"new"`
	UpdatedCount    int           `gorm:"default:0" json:"updated"`
	FailedCount     int           `gorm:"default:0" json:"failed"`
	ErrorMessage    string        `gorm:"type:text" json:"error,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
}

func (SyncLog) TableName() string {
	return "questionnaire_sync_logs"
}
