package service

import (
	"bizops_backend/internal/config"
	"bizops_backend/internal/model"
	"bizops_backend/internal/provider"
	"bizops_backend/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncService(f *fixture) *ResponseSyncService {
	return NewResponseSyncService(
		f.questionnaires,
		f.responses,
		repository.NewUserRepository(f.db),
		NewSyncLogRecorder(f.syncLogs),
		f.creds,
		f.factory,
		config.SyncConfig{NormalizeWorkers: 3, RecentRuns: 10},
	)
}

func formResponse(id string, answers map[string]provider.Answer) provider.FormResponse {
	return provider.FormResponse{
		ResponseID:  id,
		SubmittedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Answers:     answers,
		Raw:         json.RawMessage(fmt.Sprintf(`{"responseId":%q}`, id)),
	}
}

func latestLog(t *testing.T, f *fixture, questionnaireID uint) model.SyncLog {
	t.Helper()
	logs, err := f.syncLogs.ListRecent(context.Background(), questionnaireID, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	return logs[0]
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	q := f.converted(t, f.questionnaire(t, owner.UserID, "", model.QuestionShortText, model.QuestionMultiChoice))
	f.client.responses = []provider.FormResponse{
		formResponse("r1", map[string]provider.Answer{"gq-0": textAnswer("Hello"), "gq-1": textAnswer("Red", "Blue")}),
		formResponse("r2", map[string]provider.Answer{"gq-0": textAnswer("Hi")}),
		formResponse("r3", nil),
	}
	svc := newSyncService(f)
	ctx := context.Background()

	first, err := svc.Sync(ctx, owner, q.ID, model.RunManual)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Fetched)
	assert.Equal(t, 3, first.New)
	assert.Zero(t, first.Updated)
	assert.Equal(t, model.SyncCompleted, first.Status)

	before, err := f.responses.ListByQuestionnaire(ctx, q.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		again, err := svc.Sync(ctx, owner, q.ID, model.RunManual)
		require.NoError(t, err)
		assert.Zero(t, again.New)
		assert.Equal(t, 3, again.Updated)
	}

	after, err := f.responses.ListByQuestionnaire(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	byID := make(map[string]model.Response, len(after))
	for _, r := range after {
		byID[*r.ExternalResponseID] = r
	}
	for _, b := range before {
		a, ok := byID[*b.ExternalResponseID]
		require.True(t, ok)
		assert.Equal(t, b.ID, a.ID)
		assert.JSONEq(t, string(b.Answers), string(a.Answers))
		assert.Equal(t, model.ResponseSynced, a.SyncStatus)
	}

	var answers map[string]interface{}
	require.NoError(t, json.Unmarshal(byID["r1"].Answers, &answers))
	assert.Equal(t, "Hello", answers[fmt.Sprint(q.Questions[0].ID)])
	assert.Equal(t, []interface{}{"Red", "Blue"}, answers[fmt.Sprint(q.Questions[1].ID)])

	stored, err := f.questionnaires.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.TotalResponses)
	assert.NotNil(t, stored.LastSyncedAt)
}

func TestSyncIsolatesFailedItems(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	q := f.converted(t, f.questionnaire(t, owner.UserID, "", model.QuestionShortText))

	good := map[string]provider.Answer{"gq-0": textAnswer("ok")}
	f.client.responses = []provider.FormResponse{
		formResponse("r1", good),
		formResponse("r2", good),
		formResponse("r3", map[string]provider.Answer{"gq-0": {QuestionID: "gq-0"}}),
		formResponse("r4", good),
		formResponse("r5", good),
	}
	ctx := context.Background()

	result, err := newSyncService(f).Sync(ctx, owner, q.ID, model.RunManual)
	require.NoError(t, err)
	assert.Equal(t, 4, result.New+result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, model.SyncPartial, result.Status)

	rows, err := f.responses.ListByQuestionnaire(ctx, q.ID)
	require.NoError(t, err)
	var ids []string
	for _, r := range rows {
		ids = append(ids, *r.ExternalResponseID)
	}
	assert.ElementsMatch(t, []string{"r1", "r2", "r4", "r5"}, ids)

	l := latestLog(t, f, q.ID)
	assert.Equal(t, model.SyncPartial, l.Status)
	assert.Equal(t, 5, l.FetchedCount)
	assert.Equal(t, 1, l.FailedCount)
	assert.Contains(t, l.ErrorMessage, "1 of 5")
	assert.NotNil(t, l.CompletedAt)
}

func TestSyncZeroResponsesCompletes(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	q := f.converted(t, f.questionnaire(t, owner.UserID, "", model.QuestionShortText))

	result, err := newSyncService(f).Sync(context.Background(), owner, q.ID, model.RunScheduled)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCompleted, result.Status)
	assert.Zero(t, result.Fetched)

	l := latestLog(t, f, q.ID)
	assert.Equal(t, model.SyncCompleted, l.Status)
	assert.Equal(t, model.RunScheduled, l.RunType)
}

func TestSyncWithoutExternalFormClosesLogAsFailed(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	q := f.questionnaire(t, owner.UserID, "", model.QuestionShortText)

	_, err := newSyncService(f).Sync(context.Background(), owner, q.ID, model.RunManual)
	assert.ErrorIs(t, err, ErrNoExternalForm)
	assert.Zero(t, f.factory.calls)

	l := latestLog(t, f, q.ID)
	assert.Equal(t, model.SyncFailed, l.Status)
	assert.NotEmpty(t, l.ErrorMessage)
	assert.NotNil(t, l.CompletedAt)
}

func TestSyncExpiredCredentialRequiresAuthorization(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(-time.Hour), "")
	q := f.converted(t, f.questionnaire(t, owner.UserID, "", model.QuestionShortText))

	_, err := newSyncService(f).Sync(context.Background(), owner, q.ID, model.RunManual)
	var credErr *CredentialRequiredError
	require.ErrorAs(t, err, &credErr)
	assert.NotEmpty(t, credErr.AuthURL)
	assert.Zero(t, f.factory.calls)

	assert.Equal(t, model.SyncFailed, latestLog(t, f, q.ID).Status)
}

func TestSyncProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	f.client.listErr = errors.New("backend error")
	q := f.converted(t, f.questionnaire(t, owner.UserID, "", model.QuestionShortText))

	_, err := newSyncService(f).Sync(context.Background(), owner, q.ID, model.RunManual)
	var provErr *ProviderFailedError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "sync", provErr.Op)

	l := latestLog(t, f, q.ID)
	assert.Equal(t, model.SyncFailed, l.Status)
	assert.Contains(t, l.ErrorMessage, "backend error")
}

func TestSyncRejectsUnknownRunType(t *testing.T) {
	f := newFixture(t)
	q := f.questionnaire(t, owner.UserID, "")

	_, err := newSyncService(f).Sync(context.Background(), owner, q.ID, "hourly")
	assert.ErrorIs(t, err, ErrInvalidRunType)

	_, err = newSyncService(f).Sync(context.Background(), owner, 12345, model.RunManual)
	assert.ErrorIs(t, err, ErrQuestionnaireNotFound)
}

func TestSyncLinksRespondents(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	user := &model.User{Name: "Ann", Email: "ann@example.com", Password: "x"}
	require.NoError(t, f.db.Create(user).Error)
	q := f.converted(t, f.questionnaire(t, owner.UserID, "", model.QuestionShortText))

	linked := formResponse("r1", map[string]provider.Answer{"gq-0": textAnswer("yes")})
	linked.RespondentEmail = "ANN@example.com"
	anonymous := formResponse("r2", map[string]provider.Answer{"gq-0": textAnswer("no")})
	f.client.responses = []provider.FormResponse{linked, anonymous}

	_, err := newSyncService(f).Sync(context.Background(), owner, q.ID, model.RunManual)
	require.NoError(t, err)

	rows, err := f.responses.ListByQuestionnaire(context.Background(), q.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		if *r.ExternalResponseID == "r1" {
			require.NotNil(t, r.RespondentID)
			assert.Equal(t, user.ID, *r.RespondentID)
		} else {
			assert.Nil(t, r.RespondentID)
		}
	}
}

func TestNormalizeAnswers(t *testing.T) {
	ids := map[string]uint{"a": 1, "b": 2, "c": 3}

	got, err := NormalizeAnswers(provider.FormResponse{
		ResponseID: "r",
		Answers: map[string]provider.Answer{
			"a":       textAnswer("one"),
			"b":       textAnswer("x", "y"),
			"c":       {FileIDs: []string{"f1", "f2"}, HasFiles: true},
			"removed": textAnswer("ignored"),
		},
	}, ids)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"1": "one",
		"2": []string{"x", "y"},
		"3": []string{"f1", "f2"},
	}, got)

	_, err = NormalizeAnswers(provider.FormResponse{}, ids)
	assert.Error(t, err)

	_, err = NormalizeAnswers(provider.FormResponse{ResponseID: "r", Answers: map[string]provider.Answer{"a": {}}}, ids)
	assert.Error(t, err)
}
