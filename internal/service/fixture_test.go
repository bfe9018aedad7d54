package service

import (
	"bizops_backend/internal/config"
	"bizops_backend/internal/model"
	"bizops_backend/internal/provider"
	"bizops_backend/internal/repository"
	"bizops_backend/internal/testutil"
	"bizops_backend/internal/util"
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type fakeClient struct {
	mu sync.Mutex

	forms        []string
	batches      [][]provider.Operation
	responses    []provider.FormResponse
	spreadsheets []string
	written      [][]string
	formatted    int

	createErr error
	batchErr  error
	listErr   error
	sheetErr  error
}

func (c *fakeClient) CreateForm(ctx context.Context, title string) (*provider.Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.forms = append(c.forms, title)
	id := fmt.Sprintf("form-%d", len(c.forms))
	return &provider.Form{ID: id, ResponderURL: "https://forms.example/" + id}, nil
}

func (c *fakeClient) BatchUpdate(ctx context.Context, formID string, ops []provider.Operation) ([]provider.ItemResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.batchErr != nil {
		return nil, c.batchErr
	}
	c.batches = append(c.batches, ops)
	results := make([]provider.ItemResult, len(ops))
	for i, op := range ops {
		if op.Kind == provider.OpCreateItem {
			results[i] = provider.ItemResult{ItemID: fmt.Sprintf("item-%d", op.Index), QuestionIDs: []string{fmt.Sprintf("gq-%d", op.Index)}}
		}
	}
	return results, nil
}

func (c *fakeClient) ListResponses(ctx context.Context, formID string) ([]provider.FormResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.responses, nil
}

func (c *fakeClient) CreateSpreadsheet(ctx context.Context, title, sheetName string) (*provider.Spreadsheet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetErr != nil {
		return nil, c.sheetErr
	}
	c.spreadsheets = append(c.spreadsheets, title)
	return &provider.Spreadsheet{ID: "sheet-1", URL: "https://sheets.example/sheet-1", SheetID: 3}, nil
}

func (c *fakeClient) WriteRange(ctx context.Context, spreadsheetID, writeRange string, rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = rows
	return nil
}

func (c *fakeClient) FormatHeader(ctx context.Context, spreadsheetID string, sheetID int64, columns int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formatted++
	return nil
}

type fakeFactory struct {
	client *fakeClient
	calls  int
}

func (f *fakeFactory) NewClient(ctx context.Context, token *oauth2.Token) (provider.Client, error) {
	f.calls++
	return f.client, nil
}

type fakeAuthorizer struct {
	refreshed  int
	refreshErr error
	exchanged  *oauth2.Token
}

func (a *fakeAuthorizer) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (a *fakeAuthorizer) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if a.exchanged == nil {
		return nil, fmt.Errorf("exchange: %w", provider.ErrUnauthorized)
	}
	return a.exchanged, nil
}

func (a *fakeAuthorizer) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	a.refreshed++
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	return &oauth2.Token{AccessToken: "refreshed", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}, nil
}

type memStates struct {
	mu sync.Mutex
	m  map[string]uint
}

func (s *memStates) Save(ctx context.Context, state string, userID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]uint{}
	}
	s.m[state] = userID
	return nil
}

func (s *memStates) Consume(ctx context.Context, state string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.m[state]
	if !ok {
		return 0, repository.ErrStateNotFound
	}
	delete(s.m, state)
	return id, nil
}

type fixture struct {
	db             *gorm.DB
	questionnaires *repository.QuestionnaireRepository
	responses      *repository.ResponseRepository
	syncLogs       *repository.SyncLogRepository
	credentials    *repository.CredentialRepository
	creds          *CredentialService
	auth           *fakeAuthorizer
	states         *memStates
	client         *fakeClient
	factory        *fakeFactory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:             db,
		questionnaires: repository.NewQuestionnaireRepository(db),
		responses:      repository.NewResponseRepository(db),
		syncLogs:       repository.NewSyncLogRepository(db),
		credentials:    repository.NewCredentialRepository(db, &util.TokenCipher{}),
		auth:           &fakeAuthorizer{},
		states:         &memStates{},
		client:         &fakeClient{},
	}
	f.factory = &fakeFactory{client: f.client}
	f.creds = NewCredentialService(f.credentials, f.states, f.auth, config.GoogleConfig{SilentRefresh: true, StateTTLMinutes: 10})
	return f
}

func (f *fixture) connect(t *testing.T, userID uint, expiry time.Time, refreshToken string) {
	t.Helper()
	require.NoError(t, f.credentials.Upsert(context.Background(), &model.GoogleCredential{
		UserID:       userID,
		AccessToken:  "access",
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       &expiry,
	}))
}

func (f *fixture) questionnaire(t *testing.T, creatorID uint, description string, types ...model.QuestionType) *model.Questionnaire {
	t.Helper()
	questions := make([]model.Question, len(types))
	for i, typ := range types {
		questions[i] = model.Question{Text: fmt.Sprintf("Question %d", i+1), Type: typ, Position: i}
		if typ.HasOptions() {
			questions[i].Options = `["Red","Blue","Green"]`
		}
	}
	q := &model.Questionnaire{Title: "Team survey", Description: description, CreatorID: creatorID}
	require.NoError(t, f.questionnaires.CreateWithQuestions(context.Background(), q, questions))
	return q
}

// converted links every question of q to provider question "gq-<position>".
func (f *fixture) converted(t *testing.T, q *model.Questionnaire) *model.Questionnaire {
	t.Helper()
	ids := make(map[uint]string, len(q.Questions))
	for _, question := range q.Questions {
		ids[question.ID] = fmt.Sprintf("gq-%d", question.Position)
	}
	ctx := context.Background()
	require.NoError(t, f.questionnaires.SaveConversion(ctx, q.ID, "form-x", "https://forms.example/form-x", ids))
	found, err := f.questionnaires.FindByID(ctx, q.ID)
	require.NoError(t, err)
	return found
}

func textAnswer(values ...string) provider.Answer {
	return provider.Answer{Texts: values, HasText: true}
}

func itoa(id uint) string {
	return fmt.Sprint(id)
}
