package service

import (
	"bizops_backend/internal/config"
	"bizops_backend/internal/model"
	"bizops_backend/internal/repository"
	"bizops_backend/internal/util"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
)

type QuestionInput struct {
	Text     string             `json:"text" binding:"required"`
	Type     model.QuestionType `json:"type" binding:"required"`
	Options  []string           `json:"options"`
	Required bool               `json:"required"`
	// Position orders the question; omitted positions keep request order.
	Position *int `json:"position"`
}

type CreateQuestionnaireRequest struct {
	Title       string          `json:"title" binding:"required,max=255"`
	Description string          `json:"description"`
	Purpose     string          `json:"purpose" binding:"max=50"`
	Questions   []QuestionInput `json:"questions" binding:"dive"`
}

// SyncStatus summarizes the external form link and recent sync runs.
type SyncStatus struct {
	QuestionnaireID uint            `json:"questionnaireId"`
	HasExternalForm bool            `json:"hasExternalForm"`
	ExternalFormURL string          `json:"externalFormUrl,omitempty"`
	LastSyncedAt    *time.Time      `json:"lastSyncedAt,omitempty"`
	TotalResponses  int             `json:"totalResponses"`
	RecentRuns      []model.SyncLog `json:"recentRuns"`
}

type QuestionnaireService struct {
	Questionnaires *repository.QuestionnaireRepository
	Responses      *repository.ResponseRepository
	SyncLogs       *repository.SyncLogRepository
	Config         config.SyncConfig
}

func NewQuestionnaireService(
	questionnaires *repository.QuestionnaireRepository,
	responses *repository.ResponseRepository,
	syncLogs *repository.SyncLogRepository,
	cfg config.SyncConfig,
) *QuestionnaireService {
	return &QuestionnaireService{
		Questionnaires: questionnaires,
		Responses:      responses,
		SyncLogs:       syncLogs,
		Config:         cfg,
	}
}

// Create stores a questionnaire and its questions in one transaction.
// Positions are renumbered 0..n-1 in requested order.
func (s *QuestionnaireService) Create(ctx context.Context, caller Caller, req CreateQuestionnaireRequest) (*model.Questionnaire, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidQuestionnaire)
	}

	type ordered struct {
		input QuestionInput
		key   int
	}
	items := make([]ordered, len(req.Questions))
	for i, in := range req.Questions {
		if !in.Type.Valid() {
			return nil, fmt.Errorf("%w: question %d has unknown type %q", ErrInvalidQuestionnaire, i+1, in.Type)
		}
		if strings.TrimSpace(in.Text) == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ErrInvalidQuestionnaire, i+1)
		}
		if in.Type.HasOptions() && len(compact(in.Options)) == 0 {
			return nil, fmt.Errorf("%w: question %d needs at least one option", ErrInvalidQuestionnaire, i+1)
		}
		key := i
		if in.Position != nil {
			key = *in.Position
		}
		items[i] = ordered{input: in, key: key}
	}
	slices.SortStableFunc(items, func(a, b ordered) int { return cmp.Compare(a.key, b.key) })

	questions := make([]model.Question, len(items))
	for pos, it := range items {
		q := model.Question{
			Text:     strings.TrimSpace(it.input.Text),
			Type:     it.input.Type,
			Required: it.input.Required,
			Position: pos,
		}
		if it.input.Type.HasOptions() {
			raw, err := json.Marshal(compact(it.input.Options))
			if err != nil {
				return nil, err
			}
			q.Options = string(raw)
		}
		questions[pos] = q
	}

	questionnaire := &model.Questionnaire{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Purpose:     req.Purpose,
		CreatorID:   caller.UserID,
	}
	if err := s.Questionnaires.CreateWithQuestions(ctx, questionnaire, questions); err != nil {
		return nil, fmt.Errorf("create questionnaire: %w", err)
	}
	return questionnaire, nil
}

func (s *QuestionnaireService) Get(ctx context.Context, caller Caller, id uint) (*model.Questionnaire, error) {
	q, err := s.Questionnaires.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuestionnaireNotFound
	}
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(q.CreatorID) {
		return nil, util.ErrPermissionDenied
	}
	return q, nil
}

// List returns the caller's questionnaires; admins see all of them.
func (s *QuestionnaireService) List(ctx context.Context, caller Caller, page, limit int) ([]model.Questionnaire, int64, error) {
	creatorID := caller.UserID
	if caller.IsAdmin() {
		creatorID = 0
	}
	return s.Questionnaires.List(ctx, creatorID, page, limit)
}

// Delete removes the questionnaire together with its questions, responses
// and sync logs.
func (s *QuestionnaireService) Delete(ctx context.Context, caller Caller, id uint) error {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	if err := s.Questionnaires.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuestionnaireNotFound
		}
		return err
	}
	return nil
}

func (s *QuestionnaireService) GetSyncStatus(ctx context.Context, caller Caller, id uint) (*SyncStatus, error) {
	q, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	limit := s.Config.RecentRuns
	if limit <= 0 {
		limit = 10
	}
	runs, err := s.SyncLogs.ListRecent(ctx, q.ID, limit)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		QuestionnaireID: q.ID,
		HasExternalForm: q.HasExternalForm(),
		ExternalFormURL: q.ExternalFormURL,
		LastSyncedAt:    q.LastSyncedAt,
		TotalResponses:  q.TotalResponses,
		RecentRuns:      runs,
	}, nil
}

func (s *QuestionnaireService) ListResponses(ctx context.Context, caller Caller, id uint, page, limit int) ([]model.Response, int64, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, 0, err
	}
	return s.Responses.ListPage(ctx, id, page, limit)
}
