// Package provider wraps the external form and spreadsheet APIs behind the
// small capability set the sync engine needs.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrUnauthorized marks a call the provider rejected for authorization
// reasons. Callers must re-authorize rather than retry.
var ErrUnauthorized = errors.New("provider rejected credential")

type ItemKind string

const (
	ItemText      ItemKind = "text"
	ItemParagraph ItemKind = "paragraph"
	ItemRadio     ItemKind = "radio"
	ItemCheckbox  ItemKind = "checkbox"
	ItemDropDown  ItemKind = "drop_down"
	ItemScale     ItemKind = "scale"
	ItemDate      ItemKind = "date"
)

type Item struct {
	Title     string
	Required  bool
	Kind      ItemKind
	Options   []string
	ScaleLow  int
	ScaleHigh int
	LowLabel  string
	HighLabel string
}

type OperationKind string

const (
	OpSetDescription OperationKind = "set_description"
	OpCreateItem     OperationKind = "create_item"
)

// Operation is one entry of a form batch update.
type Operation struct {
	Kind        OperationKind
	Description string
	Item        *Item
	Index       int
}

// ItemResult is the provider reply to one operation. Only create_item
// operations produce a non-empty result.
type ItemResult struct {
	ItemID      string
	QuestionIDs []string
}

type Form struct {
	ID           string
	ResponderURL string
}

// Answer is a provider answer before normalization.
type Answer struct {
	QuestionID string
	Texts      []string
	FileIDs    []string
	HasText    bool
	HasFiles   bool
}

type FormResponse struct {
	ResponseID      string
	RespondentEmail string
	SubmittedAt     time.Time
	Answers         map[string]Answer
	Raw             json.RawMessage
}

type Spreadsheet struct {
	ID      string
	URL     string
	SheetID int64
}

type FormsAPI interface {
	CreateForm(ctx context.Context, title string) (*Form, error)
	BatchUpdate(ctx context.Context, formID string, ops []Operation) ([]ItemResult, error)
	ListResponses(ctx context.Context, formID string) ([]FormResponse, error)
}

type SheetsAPI interface {
	CreateSpreadsheet(ctx context.Context, title, sheetName string) (*Spreadsheet, error)
	WriteRange(ctx context.Context, spreadsheetID, writeRange string, rows [][]string) error
	FormatHeader(ctx context.Context, spreadsheetID string, sheetID int64, columns int) error
}

type Client interface {
	FormsAPI
	SheetsAPI
}

// Factory builds a client authorized with one user's delegated token.
type Factory interface {
	NewClient(ctx context.Context, token *oauth2.Token) (Client, error)
}

// Authorizer drives the delegated authorization flow.
type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}
