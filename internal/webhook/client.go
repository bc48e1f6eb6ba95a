// Package webhook writes incident status updates to an Apps Script style
// endpoint. The endpoint gives no structured response, so the only
// observable outcomes are Unknown-Success (the request completed) and
// Transport-Failure (it did not). Remote-side rejection is indistinguishable
// from success; callers must not treat true as a delivery guarantee.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// headerRows is the number of header rows above the data in the incident
// sheet. A zero-based data row index translates to sheet row
// index+headerRows+1; if the sheet ever grows extra header rows this
// constant is the single place to adjust.
const headerRows = 1

type Client struct {
	httpClient *http.Client
	endpoint   string
	enabled    bool
}

// NewClient builds a status write client. An empty endpoint yields a
// disabled client whose writes always report failure.
func NewClient(endpoint string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   endpoint,
		enabled:    endpoint != "",
	}
}

type statusPayload struct {
	Row    int    `json:"row"`
	Status string `json:"status"`
}

// PostStatus sends the new status for the record at the given zero-based row
// index. Returns true only when the request itself completed, regardless of
// response code: the endpoint responds opaquely and any completed exchange
// counts as Unknown-Success.
func (c *Client) PostStatus(ctx context.Context, rowIndex int, status string) bool {
	if !c.enabled {
		log.Warn().Msg("Status webhook not configured, skipping write")
		return false
	}
	if rowIndex < 0 {
		log.Error().Int("row_index", rowIndex).Msg("Refusing status write for negative row index")
		return false
	}

	sheetRow := rowIndex + headerRows + 1
	body, err := json.Marshal(statusPayload{Row: sheetRow, Status: status})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode status payload")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build status request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().
			Err(err).
			Int("sheet_row", sheetRow).
			Str("status", status).
			Msg("Status write failed at transport level")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Debug().
		Int("sheet_row", sheetRow).
		Str("status", status).
		Int("status_code", resp.StatusCode).
		Msg("Status write completed")

	return true
}
