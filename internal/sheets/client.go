package sheets

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/voltmidia/ytops-backend/pkg/config"
)

// Reader is the read surface the scanner and the force-upload path use.
type Reader interface {
	ReadWorksheet(ctx context.Context, spreadsheetID string) ([]Row, error)
}

// Client reads production spreadsheets with the service-account
// identity. The service account only reads sheets; it never uploads.
type Client struct {
	svc *sheets.Service
}

// NewClient builds a Sheets client from the configured service account.
func NewClient(ctx context.Context, cfg config.GoogleConfig) (*Client, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	switch {
	case cfg.ServiceAccountJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	case cfg.ServiceAccountFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountFile))
	default:
		return nil, errors.New("google service account credentials are required")
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ReadWorksheet fetches the whole production worksheet for a
// spreadsheet and parses it into rows with absolute row numbers.
func (c *Client) ReadWorksheet(ctx context.Context, spreadsheetID string) ([]Row, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, ReadRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading worksheet %s of %s: %w", WorksheetName, spreadsheetID, err)
	}
	return RowsFromValues(resp.Values), nil
}
