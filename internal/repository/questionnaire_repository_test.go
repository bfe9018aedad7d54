package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizops_backend/internal/model"
	"bizops_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sampleQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{Text: "Question", Type: model.QuestionShortText, Position: i}
	}
	return qs
}

func TestCreateWithQuestions(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionnaireRepository(db)
	ctx := context.Background()

	q := &model.Questionnaire{Title: "Engagement", CreatorID: 1}
	require.NoError(t, repo.CreateWithQuestions(ctx, q, sampleQuestions(3)))
	require.NotZero(t, q.ID)

	found, err := repo.FindByID(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, found.Questions, 3)
	for i, question := range found.Questions {
		assert.Equal(t, i, question.Position)
		assert.Equal(t, q.ID, question.QuestionnaireID)
	}
}

func TestCreateWithQuestionsRollsBackOnFailure(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionnaireRepository(db)

	inserted := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_third_question", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "questionnaire_questions" {
			inserted++
			if inserted == 3 {
				tx.AddError(errors.New("disk full"))
			}
		}
	})
	require.NoError(t, err)

	q := &model.Questionnaire{Title: "Half written", CreatorID: 1}
	err = repo.CreateWithQuestions(context.Background(), q, sampleQuestions(5))
	require.Error(t, err)

	var questionnaires, questions int64
	db.Model(&model.Questionnaire{}).Count(&questionnaires)
	db.Model(&model.Question{}).Count(&questions)
	assert.Zero(t, questionnaires)
	assert.Zero(t, questions)
}

func TestDeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionnaireRepository(db)
	responses := NewResponseRepository(db)
	logs := NewSyncLogRepository(db)
	ctx := context.Background()

	q := &model.Questionnaire{Title: "Exit survey", CreatorID: 1}
	require.NoError(t, repo.CreateWithQuestions(ctx, q, sampleQuestions(2)))
	ext := "r-1"
	_, err := responses.Upsert(ctx, &model.Response{QuestionnaireID: q.ID, ExternalResponseID: &ext})
	require.NoError(t, err)
	require.NoError(t, logs.Create(ctx, &model.SyncLog{QuestionnaireID: q.ID, RunType: model.RunManual, Status: model.SyncInProgress, StartedAt: time.Now()}))

	require.NoError(t, repo.Delete(ctx, q.ID))

	for _, m := range []interface{}{&model.Questionnaire{}, &model.Question{}, &model.Response{}, &model.SyncLog{}} {
		var n int64
		db.Model(m).Count(&n)
		assert.Zero(t, n)
	}

	assert.ErrorIs(t, repo.Delete(ctx, q.ID), gorm.ErrRecordNotFound)
}

func TestSaveConversionAndAggregates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionnaireRepository(db)
	ctx := context.Background()

	q := &model.Questionnaire{Title: "Pulse", CreatorID: 7}
	require.NoError(t, repo.CreateWithQuestions(ctx, q, sampleQuestions(2)))

	ids := map[uint]string{
		q.Questions[0].ID: "g-a",
		q.Questions[1].ID: "g-b",
	}
	require.NoError(t, repo.SaveConversion(ctx, q.ID, "form-9", "https://forms.example/9", ids))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateSyncAggregate(ctx, q.ID, 12, now))
	require.NoError(t, repo.SaveExport(ctx, q.ID, "sheet-1", "https://sheets.example/1"))

	found, err := repo.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "form-9", found.ExternalFormID)
	assert.Equal(t, "https://forms.example/9", found.ExternalFormURL)
	assert.Equal(t, "g-a", found.Questions[0].ExternalQuestionID)
	assert.Equal(t, "g-b", found.Questions[1].ExternalQuestionID)
	assert.Equal(t, 12, found.TotalResponses)
	require.NotNil(t, found.LastSyncedAt)
	assert.True(t, found.LastSyncedAt.Equal(now))
	assert.Equal(t, "sheet-1", found.SpreadsheetID)
}

func TestListScopesByCreator(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionnaireRepository(db)
	ctx := context.Background()

	for _, creator := range []uint{1, 1, 2} {
		require.NoError(t, repo.CreateWithQuestions(ctx, &model.Questionnaire{Title: "q", CreatorID: creator}, nil))
	}

	mine, total, err := repo.List(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, mine, 2)

	_, all, err := repo.List(ctx, 0, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, all)
}
