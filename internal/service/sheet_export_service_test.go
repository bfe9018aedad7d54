package service

import (
	"bizops_backend/internal/config"
	"bizops_backend/internal/model"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func strPtr(s string) *string { return &s }

func TestBuildSheetRows(t *testing.T) {
	submitted := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	q := &model.Questionnaire{Questions: []model.Question{
		{Record: model.Record{ID: 12}, Text: "Channels", Position: 1},
		{Record: model.Record{ID: 11}, Text: "Name", Position: 0},
		{Record: model.Record{ID: 13}, Text: "Score", Position: 2},
	}}
	responses := []model.Response{
		{ExternalResponseID: strPtr("r1"), SubmittedAt: &submitted, Answers: datatypes.JSON(`{"11":"Ann","12":["Email","Chat"],"13":4}`)},
		{ExternalResponseID: strPtr("r2"), Answers: datatypes.JSON(`{"11":"Bob"}`)},
	}

	rows := BuildSheetRows(q, responses)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Response ID", "Submitted At", "Name", "Channels", "Score"}, rows[0])
	assert.Equal(t, []string{"r1", "2024-05-02T08:30:00Z", "Ann", "Email, Chat", "4"}, rows[1])
	assert.Equal(t, []string{"r2", "", "Bob", "", ""}, rows[2])
}

func TestBuildSheetRowsWithoutQuestions(t *testing.T) {
	rows := BuildSheetRows(&model.Questionnaire{}, []model.Response{{ExternalResponseID: strPtr("r1")}})
	assert.Equal(t, [][]string{{"Response ID", "Submitted At"}, {"r1", ""}}, rows)
}

func newExportService(f *fixture, storage *StorageService, cfg config.ExportConfig) *SheetExportService {
	return NewSheetExportService(f.questionnaires, f.responses, f.creds, f.factory, storage, cfg)
}

func TestExportRejectsEmptyResponseSet(t *testing.T) {
	f := newFixture(t)
	q := f.questionnaire(t, owner.UserID, "", model.QuestionShortText)

	_, err := newExportService(f, nil, config.ExportConfig{}).Export(context.Background(), owner, q.ID)
	assert.ErrorIs(t, err, ErrNoResponses)
	assert.Zero(t, f.factory.calls)
	assert.Empty(t, f.client.spreadsheets)
}

func TestExportWritesSheetAndArchivesSnapshot(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	q := f.questionnaire(t, owner.UserID, "", model.QuestionShortText, model.QuestionMultiChoice)
	ctx := context.Background()

	answers := `{"` + itoa(q.Questions[0].ID) + `":"Ann","` + itoa(q.Questions[1].ID) + `":["Red","Blue"]}`
	_, err := f.responses.Upsert(ctx, &model.Response{QuestionnaireID: q.ID, ExternalResponseID: strPtr("r1"), Answers: datatypes.JSON(answers)})
	require.NoError(t, err)

	dir := t.TempDir()
	storage := NewStorageService(&config.StorageConfig{Type: "local", LocalPath: dir})
	svc := newExportService(f, storage, config.ExportConfig{SheetName: "Responses", ArchiveSnapshots: true})

	result, err := svc.Export(ctx, owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", result.SpreadsheetID)
	assert.Equal(t, 1, result.Rows)
	assert.Equal(t, 1, f.client.formatted)
	require.Len(t, f.client.written, 2)
	assert.Equal(t, []string{"r1", "", "Ann", "Red, Blue"}, f.client.written[1])

	stored, err := f.questionnaires.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://sheets.example/sheet-1", stored.SpreadsheetURL)

	require.NotEmpty(t, result.ArchiveURL)
	name := strings.TrimPrefix(result.ArchiveURL, "/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Response ID,Submitted At")
	assert.Contains(t, string(data), `"Red, Blue"`)
}

func TestExportExpiredCredential(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(-time.Hour), "")
	q := f.questionnaire(t, owner.UserID, "", model.QuestionShortText)
	_, err := f.responses.Upsert(context.Background(), &model.Response{QuestionnaireID: q.ID, ExternalResponseID: strPtr("r1")})
	require.NoError(t, err)

	_, err = newExportService(f, nil, config.ExportConfig{}).Export(context.Background(), owner, q.ID)
	var credErr *CredentialRequiredError
	require.ErrorAs(t, err, &credErr)
	assert.Zero(t, f.factory.calls)
}
