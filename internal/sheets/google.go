package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// GoogleValues implements ValuesAPI against the Google Sheets v4 API with a
// service-account credentials file.
type GoogleValues struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

func NewGoogleValues(ctx context.Context, credentialsFile, spreadsheetID string) (*GoogleValues, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &GoogleValues{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (g *GoogleValues) EnsureSheet(ctx context.Context, title string) (bool, error) {
	doc, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return false, nil
		}
	}

	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("add sheet %q: %w", title, err)
	}
	return true, nil
}

func (g *GoogleValues) ReadAll(ctx context.Context, title string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, fmt.Sprintf("'%s'", title)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (g *GoogleValues) Append(ctx context.Context, title string, row []string) error {
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{toInterfaces(row)}}
	_, err := g.svc.Spreadsheets.Values.
		Append(g.spreadsheetID, fmt.Sprintf("'%s'!A1", title), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append values: %w", err)
	}
	return nil
}

func (g *GoogleValues) Update(ctx context.Context, title string, startRow, startCol int, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = toInterfaces(row)
	}
	rng := fmt.Sprintf("'%s'!%s%d", title, colLetter(startCol), startRow+1)
	_, err := g.svc.Spreadsheets.Values.
		Update(g.spreadsheetID, rng, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update values at %s: %w", rng, err)
	}
	return nil
}

func (g *GoogleValues) Clear(ctx context.Context, title string) error {
	_, err := g.svc.Spreadsheets.Values.
		Clear(g.spreadsheetID, fmt.Sprintf("'%s'", title), &sheetsapi.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear values: %w", err)
	}
	return nil
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// colLetter converts a zero-based column index to its A1 notation letters.
func colLetter(col int) string {
	letters := ""
	n := col
	for {
		letters = string(rune('A'+n%26)) + letters
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return letters
}
