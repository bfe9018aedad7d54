package model

import "time"

type QuestionType string

const (
	QuestionShortText    QuestionType = "short_text"
	QuestionLongText     QuestionType = "long_text"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionDropdown     QuestionType = "dropdown"
	QuestionRating       QuestionType = "rating"
	QuestionFileUpload   QuestionType = "file_upload"
	QuestionDate         QuestionType = "date"
)

var questionTypes = map[QuestionType]bool{
	QuestionShortText:    true,
	QuestionLongText:     true,
	QuestionSingleChoice: true,
	QuestionMultiChoice:  true,
	QuestionDropdown:     true,
	QuestionRating:       true,
	QuestionFileUpload:   true,
	QuestionDate:         true,
}

func (t QuestionType) Valid() bool {
	return questionTypes[t]
}

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	return t == QuestionSingleChoice || t == QuestionMultiChoice || t == QuestionDropdown
}

// swagger:model Questionnaire
type Questionnaire struct {
	Record
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	Purpose         string     `gorm:"size:50" json:"purpose"`
	CreatorID       uint       `gorm:"index;not null" json:"creatorId"`
	ExternalFormID  string     `gorm:"size:128;index" json:"externalFormId,omitempty"`
	ExternalFormURL string     `gorm:"size:512" json:"externalFormUrl,omitempty"`
	SpreadsheetID   string     `gorm:"size:128" json:"spreadsheetId,omitempty"`
	SpreadsheetURL  string     `gorm:"size:512" json:"spreadsheetUrl,omitempty"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
	TotalResponses  int        `gorm:"default:0" json:"totalResponses"`
	Questions       []Question `gorm:"foreignKey:QuestionnaireID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (Questionnaire) TableName() string {
	return "questionnaires"
}

func (q *Questionnaire) HasExternalForm() bool {
	return q.ExternalFormID != ""
}

// swagger:model Question
type Question struct {
	Record
	QuestionnaireID    uint         `gorm:"index;not null" json:"questionnaireId"`
	Text               string       `gorm:"type:text;not null" json:"text"`
	Type               QuestionType `gorm:"size:30;not null" json:"type"`
	Options            string       `gorm:"type:text" json:"options,omitempty"` // JSON array or delimited list
	Required           bool         `gorm:"default:false" json:"required"`
	Position           int          `gorm:"not null;default:0" json:"position"`
	ExternalQuestionID string       `gorm:"size:64" json:"externalQuestionId,omitempty"`
}

func (Question) TableName() string {
	return "questionnaire_questions"
}
