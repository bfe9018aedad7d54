package provider

import (
	"bizops_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/forms/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var choiceTypes = map[ItemKind]string{
	ItemRadio:    "RADIO",
	ItemCheckbox: "CHECKBOX",
	ItemDropDown: "DROP_DOWN",
}

// GoogleFactory creates Forms/Sheets clients per delegated token. Extra
// options (endpoint, HTTP client) are appended to every client.
type GoogleFactory struct {
	opts []option.ClientOption
}

func NewGoogleFactory(opts ...option.ClientOption) *GoogleFactory {
	return &GoogleFactory{opts: opts}
}

func (f *GoogleFactory) NewClient(ctx context.Context, token *oauth2.Token) (Client, error) {
	opts := make([]option.ClientOption, 0, len(f.opts)+1)
	if token != nil {
		// static source: refresh is decided by the credential service, never implicitly
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	}
	opts = append(opts, f.opts...)

	formsSvc, err := forms.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("forms client: %w", err)
	}
	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return &GoogleClient{forms: formsSvc, sheets: sheetsSvc}, nil
}

type GoogleClient struct {
	forms  *forms.Service
	sheets *sheets.Service
}

var _ Client = (*GoogleClient)(nil)

func (c *GoogleClient) CreateForm(ctx context.Context, title string) (form *Form, err error) {
	defer monitoring.ObserveProviderCall("forms.create", time.Now(), &err)

	created, err := c.forms.Forms.Create(&forms.Form{
		Info: &forms.Info{Title: title, DocumentTitle: title},
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify("create form", err)
	}
	return &Form{ID: created.FormId, ResponderURL: created.ResponderUri}, nil
}

func (c *GoogleClient) BatchUpdate(ctx context.Context, formID string, ops []Operation) (results []ItemResult, err error) {
	defer monitoring.ObserveProviderCall("forms.batch_update", time.Now(), &err)

	requests := make([]*forms.Request, 0, len(ops))
	for _, op := range ops {
		req, err := toFormRequest(op)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	resp, err := c.forms.Forms.BatchUpdate(formID, &forms.BatchUpdateFormRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify("batch update form", err)
	}

	results = make([]ItemResult, len(ops))
	for i, reply := range resp.Replies {
		if i >= len(results) {
			break
		}
		if reply != nil && reply.CreateItem != nil {
			results[i] = ItemResult{
				ItemID:      reply.CreateItem.ItemId,
				QuestionIDs: reply.CreateItem.QuestionId,
			}
		}
	}
	return results, nil
}

func toFormRequest(op Operation) (*forms.Request, error) {
	switch op.Kind {
	case OpSetDescription:
		return &forms.Request{UpdateFormInfo: &forms.UpdateFormInfoRequest{
			Info:       &forms.Info{Description: op.Description},
			UpdateMask: "description",
		}}, nil
	case OpCreateItem:
		if op.Item == nil {
			return nil, errors.New("create item operation without item")
		}
		question, err := toFormQuestion(op.Item)
		if err != nil {
			return nil, err
		}
		return &forms.Request{CreateItem: &forms.CreateItemRequest{
			Item: &forms.Item{
				Title:        op.Item.Title,
				QuestionItem: &forms.QuestionItem{Question: question},
			},
			// index 0 is omitted from JSON unless forced
			Location: &forms.Location{Index: int64(op.Index), ForceSendFields: []string{"Index"}},
		}}, nil
	}
	return nil, fmt.Errorf("unknown operation kind %q", op.Kind)
}

func toFormQuestion(it *Item) (*forms.Question, error) {
	q := &forms.Question{Required: it.Required}
	switch it.Kind {
	case ItemText:
		q.TextQuestion = &forms.TextQuestion{}
	case ItemParagraph:
		q.TextQuestion = &forms.TextQuestion{Paragraph: true}
	case ItemRadio, ItemCheckbox, ItemDropDown:
		options := make([]*forms.Option, 0, len(it.Options))
		for _, o := range it.Options {
			options = append(options, &forms.Option{Value: o})
		}
		q.ChoiceQuestion = &forms.ChoiceQuestion{Type: choiceTypes[it.Kind], Options: options}
	case ItemScale:
		q.ScaleQuestion = &forms.ScaleQuestion{
			Low:       int64(it.ScaleLow),
			High:      int64(it.ScaleHigh),
			LowLabel:  it.LowLabel,
			HighLabel: it.HighLabel,
		}
	case ItemDate:
		q.DateQuestion = &forms.DateQuestion{IncludeYear: true}
	default:
		return nil, fmt.Errorf("unsupported item kind %q", it.Kind)
	}
	return q, nil
}

func (c *GoogleClient) ListResponses(ctx context.Context, formID string) (out []FormResponse, err error) {
	defer monitoring.ObserveProviderCall("forms.list_responses", time.Now(), &err)

	err = c.forms.Forms.Responses.List(formID).Pages(ctx, func(page *forms.ListFormResponsesResponse) error {
		for _, r := range page.Responses {
			if r == nil {
				continue
			}
			out = append(out, convertFormResponse(r))
		}
		return nil
	})
	if err != nil {
		return nil, classify("list responses", err)
	}
	return out, nil
}

func convertFormResponse(r *forms.FormResponse) FormResponse {
	fr := FormResponse{
		ResponseID:      r.ResponseId,
		RespondentEmail: r.RespondentEmail,
		Answers:         make(map[string]Answer, len(r.Answers)),
	}
	if raw, err := json.Marshal(r); err == nil {
		fr.Raw = raw
	}
	submitted := r.LastSubmittedTime
	if submitted == "" {
		submitted = r.CreateTime
	}
	if ts, err := time.Parse(time.RFC3339Nano, submitted); err == nil {
		fr.SubmittedAt = ts.UTC()
	}

	for key, a := range r.Answers {
		ans := Answer{QuestionID: a.QuestionId}
		if ans.QuestionID == "" {
			ans.QuestionID = key
		}
		if a.TextAnswers != nil {
			ans.HasText = true
			for _, t := range a.TextAnswers.Answers {
				if t != nil {
					ans.Texts = append(ans.Texts, t.Value)
				}
			}
		}
		if a.FileUploadAnswers != nil {
			ans.HasFiles = true
			for _, f := range a.FileUploadAnswers.Answers {
				if f != nil {
					ans.FileIDs = append(ans.FileIDs, f.FileId)
				}
			}
		}
		fr.Answers[ans.QuestionID] = ans
	}
	return fr
}

func (c *GoogleClient) CreateSpreadsheet(ctx context.Context, title, sheetName string) (ss *Spreadsheet, err error) {
	defer monitoring.ObserveProviderCall("sheets.create", time.Now(), &err)

	created, err := c.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: sheetName}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, classify("create spreadsheet", err)
	}

	ss = &Spreadsheet{ID: created.SpreadsheetId, URL: created.SpreadsheetUrl}
	if len(created.Sheets) > 0 && created.Sheets[0].Properties != nil {
		ss.SheetID = created.Sheets[0].Properties.SheetId
	}
	return ss, nil
}

func (c *GoogleClient) WriteRange(ctx context.Context, spreadsheetID, writeRange string, rows [][]string) (err error) {
	defer monitoring.ObserveProviderCall("sheets.write_range", time.Now(), &err)

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}

	_, err = c.sheets.Spreadsheets.Values.Update(spreadsheetID, writeRange, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return classify("write range", err)
	}
	return nil
}

func (c *GoogleClient) FormatHeader(ctx context.Context, spreadsheetID string, sheetID int64, columns int) (err error) {
	defer monitoring.ObserveProviderCall("sheets.format", time.Now(), &err)

	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{
		{RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    0,
				EndRowIndex:      1,
				StartColumnIndex: 0,
				EndColumnIndex:   int64(columns),
				ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
			},
			Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
				BackgroundColor: &sheets.Color{Red: 0.85, Green: 0.89, Blue: 0.95},
				TextFormat:      &sheets.TextFormat{Bold: true},
			}},
			Fields: "userEnteredFormat(backgroundColor,textFormat)",
		}},
		{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:         sheetID,
				GridProperties:  &sheets.GridProperties{FrozenRowCount: 1},
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "gridProperties.frozenRowCount",
		}},
	}}

	_, err = c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return classify("format header", err)
	}
	return nil
}

func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w: %s", op, ErrUnauthorized, gerr.Message)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, rerr)
	}
	return fmt.Errorf("%s: %w", op, err)
}
