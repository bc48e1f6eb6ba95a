// Package records maps raw sheet tables into the typed records the
// dashboards work with. Every record is tagged with its zero-based origin
// row, which serves as identity for remote writes and as the recency
// tie-breaker when dates compare equal.
package records

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"granel_dashboard/internal/dates"
	"granel_dashboard/internal/gviz"
)

// Incident status vocabulary. Free text in the sheet, but these two values
// are the convention and the toggle flips between them.
const (
	StatusOpen   = "Abierta"
	StatusClosed = "Cerrada"
)

type TransferReceipt struct {
	Source         string `json:"source"`
	ClientNumber   string `json:"clientNumber"`
	ClientName     string `json:"clientName"`
	OrderNumber    string `json:"orderNumber"`
	SubmissionDate string `json:"submissionDate"`
	ReceiptURL     string `json:"receiptUrl"`
	RowIndex       int    `json:"rowIndex"`
	Viewed         bool   `json:"viewed,omitempty"`
}

type Incident struct {
	Source          string `json:"source"`
	ClientNumber    string `json:"clientNumber"`
	ClientName      string `json:"clientName"`
	OrderNumber     string `json:"orderNumber"`
	IncidentType    string `json:"incidentType"`
	IncidentDetails string `json:"incidentDetails"`
	IncidentDate    string `json:"incidentDate"`
	Status          string `json:"status"`
	RowIndex        int    `json:"rowIndex"`
	Viewed          bool   `json:"viewed,omitempty"`
}

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

type WhatsAppMessage struct {
	Timestamp string `json:"timestamp"`
	Phone     string `json:"phone"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	RowIndex  int    `json:"rowIndex"`
}

// Conversation is derived from messages sharing a phone number; it is never
// persisted. Messages are ordered ascending by parsed timestamp.
type Conversation struct {
	Phone           string            `json:"phone"`
	Messages        []WhatsAppMessage `json:"messages"`
	LastMessageDate time.Time         `json:"lastMessageDate"`
	MessageCount    int               `json:"messageCount"`
}

// Column schemas map sheet column indices to record fields. A schema index
// past the end of a row resolves to "".

type TransferSchema struct {
	ClientNumber   int
	ClientName     int
	OrderNumber    int
	SubmissionDate int
	ReceiptURL     int
	Source         int
}

var DefaultTransferSchema = TransferSchema{
	ClientNumber:   0,
	ClientName:     1,
	OrderNumber:    2,
	SubmissionDate: 3,
	ReceiptURL:     4,
	Source:         5,
}

type IncidentSchema struct {
	ClientNumber    int
	ClientName      int
	OrderNumber     int
	IncidentType    int
	IncidentDetails int
	IncidentDate    int
	Status          int
	Source          int
}

var DefaultIncidentSchema = IncidentSchema{
	ClientNumber:    0,
	ClientName:      1,
	OrderNumber:     2,
	IncidentType:    3,
	IncidentDetails: 4,
	IncidentDate:    5,
	Status:          6,
	Source:          7,
}

type MessageSchema struct {
	Timestamp int
	Phone     int
	Role      int
	Text      int
}

var DefaultMessageSchema = MessageSchema{
	Timestamp: 0,
	Phone:     1,
	Role:      2,
	Text:      3,
}

// cellAt safely resolves the display string for a column, tolerating short
// rows and nil cells.
func cellAt(row gviz.Row, index int) string {
	if index < 0 || index >= len(row.Cells) {
		return ""
	}
	return row.Cells[index].String()
}

// MapTransfers maps a raw table into transfer receipts. A nil or empty table
// yields an empty slice; malformed cells degrade to empty fields and never
// abort the mapping.
func MapTransfers(table *gviz.Table, schema TransferSchema) []TransferReceipt {
	if table == nil {
		return []TransferReceipt{}
	}
	out := make([]TransferReceipt, 0, len(table.Rows))
	for i, row := range table.Rows {
		out = append(out, TransferReceipt{
			Source:         cellAt(row, schema.Source),
			ClientNumber:   cellAt(row, schema.ClientNumber),
			ClientName:     cellAt(row, schema.ClientName),
			OrderNumber:    cellAt(row, schema.OrderNumber),
			SubmissionDate: dates.FormatCanonical(cellAt(row, schema.SubmissionDate)),
			ReceiptURL:     cellAt(row, schema.ReceiptURL),
			RowIndex:       i,
		})
	}
	return out
}

// MapIncidents maps a raw table into incidents. A blank status cell defaults
// to the open status.
func MapIncidents(table *gviz.Table, schema IncidentSchema) []Incident {
	if table == nil {
		return []Incident{}
	}
	out := make([]Incident, 0, len(table.Rows))
	for i, row := range table.Rows {
		status := cellAt(row, schema.Status)
		if status == "" {
			status = StatusOpen
		}
		out = append(out, Incident{
			Source:          cellAt(row, schema.Source),
			ClientNumber:    cellAt(row, schema.ClientNumber),
			ClientName:      cellAt(row, schema.ClientName),
			OrderNumber:     cellAt(row, schema.OrderNumber),
			IncidentType:    cellAt(row, schema.IncidentType),
			IncidentDetails: cellAt(row, schema.IncidentDetails),
			IncidentDate:    dates.FormatCanonical(cellAt(row, schema.IncidentDate)),
			Status:          status,
			RowIndex:        i,
		})
	}
	return out
}

// MapMessages maps a raw table into WhatsApp messages. Timestamps stay in
// their raw form; they are parsed where ordering needs them.
func MapMessages(table *gviz.Table, schema MessageSchema) []WhatsAppMessage {
	if table == nil {
		return []WhatsAppMessage{}
	}
	out := make([]WhatsAppMessage, 0, len(table.Rows))
	for i, row := range table.Rows {
		out = append(out, WhatsAppMessage{
			Timestamp: cellAt(row, schema.Timestamp),
			Phone:     cellAt(row, schema.Phone),
			Role:      roleFromString(cellAt(row, schema.Role)),
			Text:      cellAt(row, schema.Text),
			RowIndex:  i,
		})
	}
	return out
}

func roleFromString(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "usuario", "cliente":
		return RoleUser
	default:
		return RoleBot
	}
}

// PatchIncidentStatus returns a copy of the list with the record at the
// given row index carrying the new status, plus the status it carried
// before. The input is never mutated. When no record matches, the input
// slice is returned as-is.
func PatchIncidentStatus(list []Incident, rowIndex int, status string) ([]Incident, string, bool) {
	for i, inc := range list {
		if inc.RowIndex == rowIndex {
			out := make([]Incident, len(list))
			copy(out, list)
			prev := out[i].Status
			out[i].Status = status
			return out, prev, true
		}
	}
	return list, "", false
}

// RevertIncidentStatus undoes an optimistic patch, but only if the record
// still carries the optimistic value. A refresh may have replaced the record
// set in the meantime; in that case the fetched truth stands.
func RevertIncidentStatus(list []Incident, rowIndex int, current, previous string) ([]Incident, bool) {
	for i, inc := range list {
		if inc.RowIndex == rowIndex && inc.Status == current {
			out := make([]Incident, len(list))
			copy(out, list)
			out[i].Status = previous
			return out, true
		}
	}
	return list, false
}

var (
	driveFileRe = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	driveOpenRe = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
)

// ViewableReceiptURL rewrites Google Drive sharing URLs into directly
// renderable thumbnail URLs. Anything else passes through unchanged.
func ViewableReceiptURL(url string) string {
	if url == "" {
		return ""
	}
	if m := driveFileRe.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("https://drive.google.com/thumbnail?id=%s&sz=w1000", m[1])
	}
	if m := driveOpenRe.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("https://drive.google.com/thumbnail?id=%s&sz=w1000", m[1])
	}
	return url
}
