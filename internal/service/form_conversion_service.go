package service

import (
	"bizops_backend/internal/model"
	"bizops_backend/internal/provider"
	"bizops_backend/internal/repository"
	"bizops_backend/internal/util"
	"bizops_backend/pkg/logger"
	"bizops_backend/pkg/tracing"
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ratingLow       = 1
	ratingHigh      = 5
	ratingLowLabel  = "Poor"
	ratingHighLabel = "Excellent"
)

var itemKinds = map[model.QuestionType]provider.ItemKind{
	model.QuestionShortText:    provider.ItemText,
	model.QuestionLongText:     provider.ItemParagraph,
	model.QuestionSingleChoice: provider.ItemRadio,
	model.QuestionMultiChoice:  provider.ItemCheckbox,
	model.QuestionDropdown:     provider.ItemDropDown,
	model.QuestionRating:       provider.ItemScale,
	model.QuestionDate:         provider.ItemDate,
}

// ErrUnsupportedQuestion is returned for question types the form provider
// cannot author.
var ErrUnsupportedQuestion = errors.New("question type not supported by the form provider")

type ConversionResult struct {
	FormID  string `json:"formId"`
	FormURL string `json:"externalFormUrl"`
}

type FormConversionService struct {
	Questionnaires *repository.QuestionnaireRepository
	Credentials    *CredentialService
	Provider       provider.Factory
}

func NewFormConversionService(questionnaires *repository.QuestionnaireRepository, creds *CredentialService, factory provider.Factory) *FormConversionService {
	return &FormConversionService{
		Questionnaires: questionnaires,
		Credentials:    creds,
		Provider:       factory,
	}
}

// BuildFormOperations returns the batch update for q: an optional
// description operation followed by one item per question, ordered and
// placed by position.
func BuildFormOperations(q *model.Questionnaire) ([]provider.Operation, error) {
	questions := slices.Clone(q.Questions)
	slices.SortStableFunc(questions, func(a, b model.Question) int {
		return cmp.Compare(a.Position, b.Position)
	})

	ops := make([]provider.Operation, 0, len(questions)+1)
	if q.Description != "" {
		ops = append(ops, provider.Operation{Kind: provider.OpSetDescription, Description: q.Description})
	}
	for _, question := range questions {
		item, err := toItem(question)
		if err != nil {
			return nil, err
		}
		ops = append(ops, provider.Operation{Kind: provider.OpCreateItem, Item: item, Index: question.Position})
	}
	return ops, nil
}

func toItem(q model.Question) (*provider.Item, error) {
	kind, ok := itemKinds[q.Type]
	if !ok {
		return nil, fmt.Errorf("question %d (%s): %w", q.ID, q.Type, ErrUnsupportedQuestion)
	}
	item := &provider.Item{Title: q.Text, Required: q.Required, Kind: kind}
	if q.Type.HasOptions() {
		options, ok := ParseOptions(q.Options)
		if !ok {
			logger.Log.Warn("Malformed option list, fell back to delimiter split",
				zap.Uint("questionID", q.ID), zap.String("options", q.Options))
		}
		item.Options = options
	}
	if q.Type == model.QuestionRating {
		item.ScaleLow, item.ScaleHigh = ratingLow, ratingHigh
		item.LowLabel, item.HighLabel = ratingLowLabel, ratingHighLabel
	}
	return item, nil
}

// Convert creates the external form for a questionnaire. It must run at
// most once per questionnaire; a questionnaire that already has a form is
// rejected.
func (s *FormConversionService) Convert(ctx context.Context, caller Caller, questionnaireID uint) (*ConversionResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "questionnaire.convert")
	defer span.End()
	span.SetAttributes(attribute.Int("questionnaire.id", int(questionnaireID)))

	q, err := s.Questionnaires.FindByID(ctx, questionnaireID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuestionnaireNotFound
	}
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(q.CreatorID) {
		return nil, util.ErrPermissionDenied
	}
	if q.HasExternalForm() {
		return nil, ErrAlreadyConverted
	}

	ops, err := BuildFormOperations(q)
	if err != nil {
		return nil, &ProviderFailedError{Op: "convert", Detail: err.Error(), Err: err}
	}

	tok, err := s.Credentials.TokenFor(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	client, err := s.Provider.NewClient(ctx, tok)
	if err != nil {
		return nil, &ProviderFailedError{Op: "convert", Err: err}
	}

	form, err := client.CreateForm(ctx, q.Title)
	if err != nil {
		span.RecordError(err)
		return nil, s.Credentials.ProviderError(ctx, caller.UserID, "convert", err)
	}

	var results []provider.ItemResult
	if len(ops) > 0 {
		results, err = client.BatchUpdate(ctx, form.ID, ops)
		if err != nil {
			span.RecordError(err)
			logger.Log.Error("Form created but item update failed, form is orphaned",
				zap.Uint("questionnaireID", q.ID), zap.String("formID", form.ID), zap.Error(err))
			return nil, s.Credentials.ProviderError(ctx, caller.UserID, "convert", err)
		}
	}

	if err := s.Questionnaires.SaveConversion(ctx, q.ID, form.ID, form.ResponderURL, questionIDMap(q.Questions, ops, results)); err != nil {
		return nil, fmt.Errorf("save conversion: %w", err)
	}

	logger.Log.Info("Questionnaire converted",
		zap.Uint("questionnaireID", q.ID), zap.String("formID", form.ID), zap.Int("items", len(q.Questions)))
	return &ConversionResult{FormID: form.ID, FormURL: form.ResponderURL}, nil
}

// questionIDMap pairs each created item with the question placed at its index.
func questionIDMap(questions []model.Question, ops []provider.Operation, results []provider.ItemResult) map[uint]string {
	byPosition := make(map[int]uint, len(questions))
	for _, q := range questions {
		byPosition[q.Position] = q.ID
	}
	out := make(map[uint]string, len(questions))
	for i, op := range ops {
		if op.Kind != provider.OpCreateItem || i >= len(results) || len(results[i].QuestionIDs) == 0 {
			continue
		}
		if id, ok := byPosition[op.Index]; ok {
			out[id] = results[i].QuestionIDs[0]
		}
	}
	return out
}
