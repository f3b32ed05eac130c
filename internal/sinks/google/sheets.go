// Package google mirrors expenses into a Google Sheets tab, one row per
// expense with the owning user in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenso/internal/core"
	applog "expenso/internal/log"
	"expenso/internal/sinks"
)

var _ sinks.Sink = (*Client)(nil)

var header = []interface{}{"User", "ID", "Date", "Name", "Category", "Amount"}

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsFile is a service account key. GOOGLE_SERVICE_ACCOUNT_JSON
	// takes precedence when set.
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *applog.Logger
}

func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := readCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *applog.Logger) *Client {
	if sheet == "" {
		sheet = "Expenses"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger.WithComponent(applog.ComponentSinks),
	}
}

func readCredentials(file string) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func (c *Client) Name() string { return "sheets" }

func (c *Client) rng(cells string) string {
	return fmt.Sprintf("%s!%s", c.sheet, cells)
}

func (c *Client) readRows(ctx context.Context) ([][]interface{}, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A:F")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	return resp.Values, nil
}

// Append writes the expense row, overwriting an existing row for the same
// expense so replayed events stay idempotent.
func (c *Client) Append(ctx context.Context, userID string, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	row := documentRow(sinks.NewDocument(userID, e))

	if idx := findRow(rows, userID, e.ID); idx >= 0 {
		vr := &gsheet.ValueRange{Values: [][]interface{}{row}}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng(fmt.Sprintf("A%d:F%d", idx+1, idx+1)), vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update row: %w", err)
		}
		return nil
	}

	values := [][]interface{}{row}
	if len(rows) == 0 {
		values = [][]interface{}{header, row}
	}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rng("A:F"), &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, userID, expenseID string) error {
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	idx := findRow(rows, userID, expenseID)
	if idx < 0 {
		c.logger.DebugContext(ctx, "Row not found, nothing to delete",
			applog.FieldUserID, userID, applog.FieldExpenseID, expenseID)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(idx),
					EndIndex:        int64(idx + 1),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

// Resync rewrites the tab keeping other users' rows untouched.
func (c *Client) Resync(ctx context.Context, userID string, records []core.Expense) error {
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	values := keepOthers(rows, userID)
	for _, e := range records {
		values = append(values, documentRow(sinks.NewDocument(userID, e)))
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rng("A:F"), &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng("A1"), &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}
	c.logger.InfoContext(ctx, "Sheet resynced", applog.FieldUserID, userID, applog.FieldCount, len(records))
	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets(properties(sheetId,title))").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheet)
}

func documentRow(d sinks.Document) []interface{} {
	return []interface{}{d.UserID, d.ID, d.Date, d.Name, d.Category, d.Amount}
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// findRow returns the 0-based row index for the expense or -1.
func findRow(rows [][]interface{}, userID, expenseID string) int {
	for i, row := range rows {
		if cell(row, 0) == userID && cell(row, 1) == expenseID {
			return i
		}
	}
	return -1
}

// keepOthers returns the header plus every row not owned by userID.
func keepOthers(rows [][]interface{}, userID string) [][]interface{} {
	out := [][]interface{}{header}
	for i, row := range rows {
		if i == 0 && cell(row, 0) == header[0] {
			continue
		}
		if cell(row, 0) == userID {
			continue
		}
		out = append(out, row)
	}
	return out
}
