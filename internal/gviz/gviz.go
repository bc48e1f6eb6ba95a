// Package gviz reads public Google Sheets through the visualization query
// endpoint, which requires no API key for sheets shared as "anyone with the
// link can view".
package gviz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Cell is a single spreadsheet cell as returned by the visualization
// endpoint. V carries the typed value (string, number or null), F the
// locale-formatted display string when the sheet applies formatting.
type Cell struct {
	Value     interface{} `json:"v"`
	Formatted string      `json:"f"`
}

// String resolves the display text for a cell. The formatted string wins
// when present so dates and currency keep their sheet formatting; bare
// values are string-coerced. Absent cells and null values yield "".
func (c *Cell) String() string {
	if c == nil {
		return ""
	}
	if c.Formatted != "" {
		return c.Formatted
	}
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Row is an ordered sequence of cells. Cells may be nil when the sheet has
// gaps in a row.
type Row struct {
	Cells []*Cell `json:"c"`
}

// Table is the tabular payload of a visualization query response.
type Table struct {
	Rows []Row `json:"rows"`
}

type queryResponse struct {
	Table *Table `json:"table"`
}

// The endpoint wraps its JSON in a JSONP call. The capture group is the
// actual payload.
var setResponseRe = regexp.MustCompile(`(?s)google\.visualization\.Query\.setResponse\((.*)\);?\s*$`)

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://docs.google.com",
	}
}

// FetchTable retrieves the full table for one sheet (identified by gid) of a
// public spreadsheet. A response without a table or rows yields an empty
// table, not an error; only transport and format failures are errors.
func (c *Client) FetchTable(ctx context.Context, spreadsheetID, gid string) (*Table, error) {
	url := fmt.Sprintf("%s/spreadsheets/d/%s/gviz/tq?tqx=out:json&gid=%s", c.baseURL, spreadsheetID, gid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sheet request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch sheet data: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet response: %w", err)
	}

	table, err := ParseResponse(body)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("spreadsheet_id", spreadsheetID).
		Str("gid", gid).
		Int("rows", len(table.Rows)).
		Msg("Fetched sheet table")

	return table, nil
}

// ParseResponse strips the JSONP wrapper and decodes the table payload.
func ParseResponse(body []byte) (*Table, error) {
	m := setResponseRe.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("unexpected response format from visualization endpoint")
	}

	var qr queryResponse
	if err := json.Unmarshal(m[1], &qr); err != nil {
		return nil, fmt.Errorf("failed to decode sheet response: %w", err)
	}

	if qr.Table == nil {
		return &Table{}, nil
	}
	return qr.Table, nil
}

// TableFromValues adapts a Sheets API values matrix to a Table so both
// transports feed the same row mappers. API values carry no separate
// formatted string.
func TableFromValues(values [][]interface{}) *Table {
	table := &Table{Rows: make([]Row, 0, len(values))}
	for _, row := range values {
		cells := make([]*Cell, 0, len(row))
		for _, v := range row {
			if v == nil {
				cells = append(cells, nil)
				continue
			}
			cells = append(cells, &Cell{Value: v})
		}
		table.Rows = append(table.Rows, Row{Cells: cells})
	}
	return table
}
