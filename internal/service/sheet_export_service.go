package service

import (
	"bizops_backend/internal/config"
	"bizops_backend/internal/model"
	"bizops_backend/internal/provider"
	"bizops_backend/internal/repository"
	"bizops_backend/internal/util"
	"bizops_backend/pkg/logger"
	"bizops_backend/pkg/tracing"
	"bytes"
	"cmp"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const listSeparator = ", "

var fixedColumns = []string{"Response ID", "Submitted At"}

type ExportResult struct {
	SpreadsheetID  string `json:"spreadsheetId"`
	SpreadsheetURL string `json:"spreadsheetUrl"`
	Rows           int    `json:"rows"`
	ArchiveURL     string `json:"archiveUrl,omitempty"`
}

type SheetExportService struct {
	Questionnaires *repository.QuestionnaireRepository
	Responses      *repository.ResponseRepository
	Credentials    *CredentialService
	Provider       provider.Factory
	Storage        *StorageService
	Config         config.ExportConfig

	now func() time.Time
}

func NewSheetExportService(
	questionnaires *repository.QuestionnaireRepository,
	responses *repository.ResponseRepository,
	creds *CredentialService,
	factory provider.Factory,
	storage *StorageService,
	cfg config.ExportConfig,
) *SheetExportService {
	return &SheetExportService{
		Questionnaires: questionnaires,
		Responses:      responses,
		Credentials:    creds,
		Provider:       factory,
		Storage:        storage,
		Config:         cfg,
		now:            time.Now,
	}
}

// BuildSheetRows renders the header row and one row per response. Question
// columns follow position order.
func BuildSheetRows(q *model.Questionnaire, responses []model.Response) [][]string {
	questions := slices.Clone(q.Questions)
	slices.SortStableFunc(questions, func(a, b model.Question) int {
		return cmp.Compare(a.Position, b.Position)
	})

	header := make([]string, 0, len(fixedColumns)+len(questions))
	header = append(header, fixedColumns...)
	for _, question := range questions {
		header = append(header, question.Text)
	}

	rows := make([][]string, 0, len(responses)+1)
	rows = append(rows, header)
	for _, r := range responses {
		var answers map[string]interface{}
		if len(r.Answers) > 0 {
			if err := json.Unmarshal(r.Answers, &answers); err != nil {
				logger.Log.Warn("Unreadable stored answers", zap.Uint("responseID", r.ID), zap.Error(err))
			}
		}

		row := make([]string, 0, len(header))
		row = append(row, derefString(r.ExternalResponseID), formatTime(r.SubmittedAt))
		for _, question := range questions {
			row = append(row, displayValue(answers[strconv.FormatUint(uint64(question.ID), 10)]))
		}
		rows = append(rows, row)
	}
	return rows
}

func displayValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, displayValue(item))
		}
		return strings.Join(parts, listSeparator)
	default:
		return fmt.Sprint(val)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Export writes the stored responses of a questionnaire to a new
// spreadsheet. A questionnaire without responses is rejected before any
// credential or provider access.
func (s *SheetExportService) Export(ctx context.Context, caller Caller, questionnaireID uint) (*ExportResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "questionnaire.export")
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

	responses, err := s.Responses.ListByQuestionnaire(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, ErrNoResponses
	}
	rows := BuildSheetRows(q, responses)

	tok, err := s.Credentials.TokenFor(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	client, err := s.Provider.NewClient(ctx, tok)
	if err != nil {
		return nil, &ProviderFailedError{Op: "export", Err: err}
	}

	sheetName := s.Config.SheetName
	if sheetName == "" {
		sheetName = "Responses"
	}
	ss, err := client.CreateSpreadsheet(ctx, fmt.Sprintf("%s - Responses", q.Title), sheetName)
	if err != nil {
		span.RecordError(err)
		return nil, s.Credentials.ProviderError(ctx, caller.UserID, "export", err)
	}
	writeRange := fmt.Sprintf("'%s'!A1", strings.ReplaceAll(sheetName, "'", "''"))
	if err := client.WriteRange(ctx, ss.ID, writeRange, rows); err != nil {
		span.RecordError(err)
		return nil, s.Credentials.ProviderError(ctx, caller.UserID, "export", err)
	}
	if err := client.FormatHeader(ctx, ss.ID, ss.SheetID, len(rows[0])); err != nil {
		logger.Log.Warn("Header formatting failed", zap.String("spreadsheetID", ss.ID), zap.Error(err))
	}

	if err := s.Questionnaires.SaveExport(ctx, q.ID, ss.ID, ss.URL); err != nil {
		return nil, fmt.Errorf("save export: %w", err)
	}

	result := &ExportResult{SpreadsheetID: ss.ID, SpreadsheetURL: ss.URL, Rows: len(rows) - 1}
	if s.Config.ArchiveSnapshots && s.Storage != nil {
		url, err := s.archive(ctx, q.ID, rows)
		if err != nil {
			logger.Log.Warn("Export snapshot not archived", zap.Uint("questionnaireID", q.ID), zap.Error(err))
		} else {
			result.ArchiveURL = url
		}
	}

	logger.Log.Info("Responses exported",
		zap.Uint("questionnaireID", q.ID), zap.String("spreadsheetID", ss.ID), zap.Int("rows", result.Rows))
	return result, nil
}

func (s *SheetExportService) archive(ctx context.Context, questionnaireID uint, rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	name := fmt.Sprintf("exports/questionnaire-%d/%s-%s.csv",
		questionnaireID, s.now().UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	return s.Storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()), int64(buf.Len()), util.MimeCSV)
}
