package service

import (
	"bizops_backend/internal/model"
	"bizops_backend/internal/provider"
	"bizops_backend/internal/util"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = Caller{UserID: 1, Role: model.Manager}

func TestBuildFormOperationsPlacesItemsByPosition(t *testing.T) {
	q := &model.Questionnaire{
		Description: "Quarterly check-in",
		Questions: []model.Question{
			{Text: "D", Type: model.QuestionDate, Position: 3},
			{Text: "A", Type: model.QuestionShortText, Position: 0},
			{Text: "C", Type: model.QuestionRating, Position: 2},
			{Text: "B", Type: model.QuestionMultiChoice, Position: 1, Options: "Email, Chat , ,Phone"},
		},
	}

	ops, err := BuildFormOperations(q)
	require.NoError(t, err)
	require.Len(t, ops, 5)
	assert.Equal(t, provider.OpSetDescription, ops[0].Kind)
	assert.Equal(t, "Quarterly check-in", ops[0].Description)

	for i, op := range ops[1:] {
		assert.Equal(t, provider.OpCreateItem, op.Kind)
		assert.Equal(t, i, op.Index)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, []string{ops[1].Item.Title, ops[2].Item.Title, ops[3].Item.Title, ops[4].Item.Title})

	assert.Equal(t, provider.ItemCheckbox, ops[2].Item.Kind)
	assert.Equal(t, []string{"Email", "Chat", "Phone"}, ops[2].Item.Options)

	rating := ops[3].Item
	assert.Equal(t, provider.ItemScale, rating.Kind)
	assert.Equal(t, 1, rating.ScaleLow)
	assert.Equal(t, 5, rating.ScaleHigh)
	assert.NotEmpty(t, rating.LowLabel)
	assert.NotEmpty(t, rating.HighLabel)
}

func TestBuildFormOperationsWithoutDescription(t *testing.T) {
	q := &model.Questionnaire{Questions: []model.Question{{Text: "Only", Type: model.QuestionLongText}}}

	ops, err := BuildFormOperations(q)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, provider.ItemParagraph, ops[0].Item.Kind)
}

func TestBuildFormOperationsRejectsFileUpload(t *testing.T) {
	q := &model.Questionnaire{Questions: []model.Question{{Text: "CV", Type: model.QuestionFileUpload}}}

	_, err := BuildFormOperations(q)
	assert.ErrorIs(t, err, ErrUnsupportedQuestion)
}

func TestConvertStoresFormAndQuestionIDs(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	q := f.questionnaire(t, owner.UserID, "Intro", model.QuestionShortText, model.QuestionSingleChoice, model.QuestionRating, model.QuestionDate)
	svc := NewFormConversionService(f.questionnaires, f.creds, f.factory)

	result, err := svc.Convert(context.Background(), owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "form-1", result.FormID)
	assert.Equal(t, "https://forms.example/form-1", result.FormURL)

	require.Len(t, f.client.batches, 1)
	var indices []int
	for _, op := range f.client.batches[0] {
		if op.Kind == provider.OpCreateItem {
			indices = append(indices, op.Index)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3}, indices)

	stored, err := f.questionnaires.FindByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, "form-1", stored.ExternalFormID)
	for _, question := range stored.Questions {
		assert.Equal(t, fmt.Sprintf("gq-%d", question.Position), question.ExternalQuestionID)
	}

	_, err = svc.Convert(context.Background(), owner, q.ID)
	assert.ErrorIs(t, err, ErrAlreadyConverted)
	assert.Len(t, f.client.forms, 1)
}

func TestConvertEmptyQuestionnaireCreatesShellOnly(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	q := f.questionnaire(t, owner.UserID, "")
	svc := NewFormConversionService(f.questionnaires, f.creds, f.factory)

	_, err := svc.Convert(context.Background(), owner, q.ID)
	require.NoError(t, err)
	assert.Len(t, f.client.forms, 1)
	assert.Empty(t, f.client.batches)
}

func TestConvertExpiredCredentialRequiresAuthorization(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(-time.Hour), "")
	q := f.questionnaire(t, owner.UserID, "", model.QuestionShortText)
	svc := NewFormConversionService(f.questionnaires, f.creds, f.factory)

	_, err := svc.Convert(context.Background(), owner, q.ID)
	var credErr *CredentialRequiredError
	require.ErrorAs(t, err, &credErr)
	assert.NotEmpty(t, credErr.AuthURL)
	assert.Zero(t, f.factory.calls)
	assert.Zero(t, f.auth.refreshed)
}

func TestConvertWithoutCredentialRequiresAuthorization(t *testing.T) {
	f := newFixture(t)
	q := f.questionnaire(t, owner.UserID, "", model.QuestionShortText)
	svc := NewFormConversionService(f.questionnaires, f.creds, f.factory)

	_, err := svc.Convert(context.Background(), owner, q.ID)
	var credErr *CredentialRequiredError
	require.ErrorAs(t, err, &credErr)
	assert.Contains(t, credErr.AuthURL, "state=")
	assert.Zero(t, f.factory.calls)
}

func TestConvertUnauthorizedExpiresCredential(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	f.client.createErr = fmt.Errorf("create form: %w", provider.ErrUnauthorized)
	q := f.questionnaire(t, owner.UserID, "", model.QuestionShortText)
	svc := NewFormConversionService(f.questionnaires, f.creds, f.factory)

	_, err := svc.Convert(context.Background(), owner, q.ID)
	var credErr *CredentialRequiredError
	require.ErrorAs(t, err, &credErr)
	assert.NotEmpty(t, credErr.AuthURL)

	status, err := f.creds.Status(context.Background(), owner.UserID)
	require.NoError(t, err)
	assert.True(t, status.Expired)
}

func TestConvertProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.connect(t, owner.UserID, time.Now().Add(time.Hour), "")
	f.client.batchErr = errors.New("quota exceeded")
	q := f.questionnaire(t, owner.UserID, "", model.QuestionShortText)
	svc := NewFormConversionService(f.questionnaires, f.creds, f.factory)

	_, err := svc.Convert(context.Background(), owner, q.ID)
	var provErr *ProviderFailedError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "convert", provErr.Op)
	assert.Contains(t, provErr.Detail, "quota exceeded")

	stored, err := f.questionnaires.FindByID(context.Background(), q.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasExternalForm())
}

func TestConvertPreconditions(t *testing.T) {
	f := newFixture(t)
	svc := NewFormConversionService(f.questionnaires, f.creds, f.factory)

	_, err := svc.Convert(context.Background(), owner, 404)
	assert.ErrorIs(t, err, ErrQuestionnaireNotFound)

	q := f.questionnaire(t, 99, "")
	_, err = svc.Convert(context.Background(), owner, q.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}
