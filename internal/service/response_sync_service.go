package service

import (
	"bizops_backend/internal/config"
	"bizops_backend/internal/model"
	"bizops_backend/internal/provider"
	"bizops_backend/internal/repository"
	"bizops_backend/internal/util"
	"bizops_backend/pkg/logger"
	"bizops_backend/pkg/monitoring"
	"bizops_backend/pkg/tracing"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncResult carries the tallies of one ingestion run.
type SyncResult struct {
	SyncLogID uint                `json:"syncLogId"`
	Status    model.SyncRunStatus `json:"status"`
	Fetched   int                 `json:"fetched"`
	New       int                 `json:"new"`
	Updated   int                 `json:"updated"`
	Failed    int                 `json:"failed"`
}

type normalizedResponse struct {
	answers []byte
	err     error
}

type ResponseSyncService struct {
	Questionnaires *repository.QuestionnaireRepository
	Responses      *repository.ResponseRepository
	Users          *repository.UserRepository
	Recorder       *SyncLogRecorder
	Credentials    *CredentialService
	Provider       provider.Factory
	Config         config.SyncConfig

	now func() time.Time
}

func NewResponseSyncService(
	questionnaires *repository.QuestionnaireRepository,
	responses *repository.ResponseRepository,
	users *repository.UserRepository,
	recorder *SyncLogRecorder,
	creds *CredentialService,
	factory provider.Factory,
	cfg config.SyncConfig,
) *ResponseSyncService {
	return &ResponseSyncService{
		Questionnaires: questionnaires,
		Responses:      responses,
		Users:          users,
		Recorder:       recorder,
		Credentials:    creds,
		Provider:       factory,
		Config:         cfg,
		now:            time.Now,
	}
}

// Sync pulls the full response set of the questionnaire's external form and
// upserts every response by (questionnaire, external response id). A failing
// item is counted and skipped. The sync log opened for the run is closed on
// every return path.
func (s *ResponseSyncService) Sync(ctx context.Context, caller Caller, questionnaireID uint, runType model.SyncRunType) (result *SyncResult, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "questionnaire.sync")
	defer span.End()
	span.SetAttributes(attribute.Int("questionnaire.id", int(questionnaireID)), attribute.String("sync.run_type", string(runType)))

	if runType == "" {
		runType = model.RunManual
	}
	if !runType.Valid() {
		return nil, ErrInvalidRunType
	}

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

	run, err := s.Recorder.Open(ctx, q.ID, caller.UserID, runType)
	if err != nil {
		return nil, fmt.Errorf("open sync log: %w", err)
	}
	log := logger.Log.With(zap.Uint("questionnaireID", q.ID), zap.Uint("syncLogID", run.Log.ID), zap.String("runType", string(runType)))
	log.Info("Sync run started")

	outcome := repository.SyncLogOutcome{Status: model.SyncFailed}
	defer func() {
		if rec := recover(); rec != nil {
			outcome = repository.SyncLogOutcome{Status: model.SyncFailed, ErrorMessage: fmt.Sprintf("run aborted: %v", rec)}
			run.Close(ctx, outcome)
			monitoring.RecordSyncRun(string(runType), string(outcome.Status), 0, 0, 0)
			panic(rec)
		}
		if err != nil && outcome.ErrorMessage == "" {
			outcome.ErrorMessage = err.Error()
		}
		run.Close(ctx, outcome)
		monitoring.RecordSyncRun(string(runType), string(outcome.Status), outcome.New, outcome.Updated, outcome.Failed)
		log.Info("Sync run finished",
			zap.String("status", string(outcome.Status)),
			zap.Int("fetched", outcome.Fetched),
			zap.Int("new", outcome.New),
			zap.Int("updated", outcome.Updated),
			zap.Int("failed", outcome.Failed))
	}()

	if !q.HasExternalForm() {
		return nil, ErrNoExternalForm
	}

	tok, err := s.Credentials.TokenFor(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	client, err := s.Provider.NewClient(ctx, tok)
	if err != nil {
		return nil, &ProviderFailedError{Op: "sync", Err: err}
	}
	fetched, err := client.ListResponses(ctx, q.ExternalFormID)
	if err != nil {
		span.RecordError(err)
		log.Error("Listing responses failed", zap.Error(err))
		return nil, s.Credentials.ProviderError(ctx, caller.UserID, "sync", err)
	}

	normalized := s.normalizeAll(ctx, q, fetched)
	respondents := s.resolveRespondents(ctx, fetched, log)

	syncedAt := s.now().UTC()
	outcome.Fetched = len(fetched)
	var firstErr error
	for i, fr := range fetched {
		itemErr := normalized[i].err
		if itemErr == nil {
			var created bool
			created, itemErr = s.Responses.Upsert(ctx, toResponse(q.ID, fr, normalized[i].answers, respondents, syncedAt))
			if itemErr == nil {
				if created {
					outcome.New++
				} else {
					outcome.Updated++
				}
				continue
			}
		}
		outcome.Failed++
		if firstErr == nil {
			firstErr = itemErr
		}
		log.Warn("Response not ingested", zap.String("externalResponseID", fr.ResponseID), zap.Error(itemErr))
	}

	switch {
	case outcome.Failed == 0:
		outcome.Status = model.SyncCompleted
	case outcome.Failed == outcome.Fetched:
		outcome.Status = model.SyncFailed
	default:
		outcome.Status = model.SyncPartial
	}
	if firstErr != nil {
		outcome.ErrorMessage = fmt.Sprintf("%d of %d responses failed, first error: %v", outcome.Failed, outcome.Fetched, firstErr)
	}

	if err = s.Questionnaires.UpdateSyncAggregate(ctx, q.ID, len(fetched), syncedAt); err != nil {
		outcome.Status = model.SyncFailed
		outcome.ErrorMessage = "update questionnaire aggregate: " + err.Error()
		return nil, fmt.Errorf("update sync aggregate: %w", err)
	}

	return &SyncResult{
		SyncLogID: run.Log.ID,
		Status:    outcome.Status,
		Fetched:   outcome.Fetched,
		New:       outcome.New,
		Updated:   outcome.Updated,
		Failed:    outcome.Failed,
	}, nil
}

// normalizeAll fans normalization out over a bounded worker group. Results
// line up with fetched by index; nothing is counted until every item is done.
func (s *ResponseSyncService) normalizeAll(ctx context.Context, q *model.Questionnaire, fetched []provider.FormResponse) []normalizedResponse {
	questionIDs := make(map[string]uint, len(q.Questions))
	for _, question := range q.Questions {
		if question.ExternalQuestionID != "" {
			questionIDs[question.ExternalQuestionID] = question.ID
		}
	}

	out := make([]normalizedResponse, len(fetched))
	g, _ := errgroup.WithContext(ctx)
	workers := s.Config.NormalizeWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := range fetched {
		g.Go(func() error {
			answers, err := NormalizeAnswers(fetched[i], questionIDs)
			if err == nil {
				out[i].answers, err = json.Marshal(answers)
			}
			out[i].err = err
			return nil
		})
	}
	g.Wait()
	return out
}

func (s *ResponseSyncService) resolveRespondents(ctx context.Context, fetched []provider.FormResponse, log *zap.Logger) map[string]uint {
	if s.Users == nil {
		return nil
	}
	emails := make([]string, 0, len(fetched))
	for _, fr := range fetched {
		if fr.RespondentEmail != "" {
			emails = append(emails, fr.RespondentEmail)
		}
	}
	if len(emails) == 0 {
		return nil
	}
	ids, err := s.Users.FindIDsByEmails(ctx, emails)
	if err != nil {
		log.Warn("Respondent lookup failed, responses stay unlinked", zap.Error(err))
		return nil
	}
	return ids
}

// NormalizeAnswers maps provider answers onto internal question ids. A
// single text value becomes a string, several become a list, and file
// uploads become their file id list. Answers to unknown questions are
// dropped.
func NormalizeAnswers(fr provider.FormResponse, questionIDs map[string]uint) (map[string]interface{}, error) {
	if fr.ResponseID == "" {
		return nil, errors.New("response has no external id")
	}
	answers := make(map[string]interface{}, len(fr.Answers))
	for externalID, a := range fr.Answers {
		internalID, ok := questionIDs[externalID]
		if !ok {
			continue
		}
		key := strconv.FormatUint(uint64(internalID), 10)
		switch {
		case a.HasFiles:
			answers[key] = nonNil(a.FileIDs)
		case a.HasText && len(a.Texts) == 1:
			answers[key] = a.Texts[0]
		case a.HasText:
			answers[key] = nonNil(a.Texts)
		default:
			return nil, fmt.Errorf("answer to question %s carries no value", externalID)
		}
	}
	return answers, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toResponse(questionnaireID uint, fr provider.FormResponse, answers []byte, respondents map[string]uint, syncedAt time.Time) *model.Response {
	externalID := fr.ResponseID
	resp := &model.Response{
		QuestionnaireID:    questionnaireID,
		ExternalResponseID: &externalID,
		RespondentEmail:    fr.RespondentEmail,
		Answers:            datatypes.JSON(answers),
		RawPayload:         datatypes.JSON(fr.Raw),
		LastSyncedAt:       &syncedAt,
		SyncStatus:         model.ResponseSynced,
	}
	if !fr.SubmittedAt.IsZero() {
		submitted := fr.SubmittedAt
		resp.SubmittedAt = &submitted
	}
	if id, ok := respondents[strings.ToLower(fr.RespondentEmail)]; ok {
		resp.RespondentID = &id
	}
	return resp
}
