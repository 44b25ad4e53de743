// Package sheets stores the whole state document as one JSON blob in a single
// cell of a Google spreadsheet. It is deliberately not a real datastore: one
// cell, read fully, overwritten fully.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"roomie/internal/core"
	"roomie/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// documentCell is where the blob lives, matching the original spreadsheet.
const documentCell = "A1"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ store.DocumentStore = (*Client)(nil)

// NewFromEnv creates the store from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Optional: GOOGLE_SHEET_NAME (default "RoomieData") and service account
// credentials via GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "RoomieData"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) cellRange() string {
	return fmt.Sprintf("%s!%s", c.sheetName, documentCell)
}

// Load reads the document cell. An empty cell means no prior state and yields
// an empty document; unparseable content is a load failure.
func (c *Client) Load(ctx context.Context) (core.Document, error) {
	if c.svc == nil {
		return core.Document{}, errors.New("sheets service not initialized")
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.cellRange()).Context(ctx).Do()
	if err != nil {
		return core.Document{}, fmt.Errorf("read %s: %w", c.cellRange(), err)
	}

	raw := cellValue(resp.Values)
	doc, err := core.DecodeDocument([]byte(raw))
	if err != nil {
		return core.Document{}, fmt.Errorf("stored document in %s: %w", c.cellRange(), err)
	}

	slog.DebugContext(ctx, "Loaded state document from sheet",
		"sheet", c.sheetName,
		"bytes", len(raw))
	return doc, nil
}

// Save overwrites the document cell with the serialized document. RAW input
// keeps the spreadsheet from reinterpreting the JSON.
func (c *Client) Save(ctx context.Context, doc core.Document) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	data, err := doc.Encode()
	if err != nil {
		return err
	}

	vr := &gsheet.ValueRange{Values: [][]any{{string(data)}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.cellRange(), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", c.cellRange(), err)
	}

	slog.InfoContext(ctx, "Saved state document to sheet",
		"sheet", c.sheetName,
		"bytes", len(data))
	return nil
}

func cellValue(values [][]any) string {
	if len(values) == 0 || len(values[0]) == 0 {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(values[0][0]))
}
