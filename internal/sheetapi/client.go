// Package sheetapi is the authenticated Sheets transport, used when a
// service-account credentials file is configured. It reads whole data
// ranges and writes the incident status cell directly, as an alternative to
// the public gviz endpoint and the webhook write path.
package sheetapi

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"granel_dashboard/internal/config"
	"granel_dashboard/internal/records"
	"granel_dashboard/internal/retry"
)

// headerRows mirrors the webhook write path: data row 0 lives on sheet row
// headerRows+1.
const headerRows = 1

type Client struct {
	service *sheets.Service
}

func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{service: service}, nil
}

// ReadRows fetches a value range, retrying per the sheet-read resilience
// profile.
func (c *Client) ReadRows(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	return retry.WithRetry(ctx, config.DefaultResilience.SheetRead, func(ctx context.Context) ([][]interface{}, error) {
		resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet: %w", err)
		}
		return resp.Values, nil
	})
}

// WriteStatus updates the status cell for the incident at the given
// zero-based data row index.
func (c *Client) WriteStatus(ctx context.Context, spreadsheetID, sheetName string, rowIndex int, status string) error {
	if rowIndex < 0 {
		return fmt.Errorf("refusing status write for negative row index %d", rowIndex)
	}

	column := string(rune('A' + records.DefaultIncidentSchema.Status))
	cellRange := fmt.Sprintf("%s!%s%d", sheetName, column, rowIndex+headerRows+1)

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}
	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, cellRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update status cell %s: %w", cellRange, err)
	}
	return nil
}
