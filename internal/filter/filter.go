// Package filter applies compound filter criteria to record sets and orders
// the results deterministically. All functions are pure: inputs are never
// mutated and outputs are freshly allocated (or the input itself when a
// criterion set imposes no constraint at all).
package filter

import (
	"sort"
	"strings"
	"time"

	"granel_dashboard/internal/dates"
	"granel_dashboard/internal/records"
)

// TransferCriteria filters transfer receipts. Nil dates and empty strings
// impose no constraint.
type TransferCriteria struct {
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	ClientSearch string     `json:"clientSearch"`
	OrderSearch  string     `json:"orderSearch"`
}

// IncidentCriteria filters incidents. The categorical filters match exactly,
// case-insensitively.
type IncidentCriteria struct {
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	ClientSearch string     `json:"clientSearch"`
	OrderSearch  string     `json:"orderSearch"`
	SourceFilter string     `json:"sourceFilter"`
	TypeFilter   string     `json:"typeFilter"`
	StatusFilter string     `json:"statusFilter"`
}

// MessageCriteria filters WhatsApp messages. SearchTerm matches phone or
// message text.
type MessageCriteria struct {
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	SearchTerm string     `json:"searchTerm"`
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// withinRange evaluates the date-range criterion. A record whose date fails
// to parse is outside the filter's jurisdiction and is not excluded; the
// other predicates still apply to it.
func withinRange(dateText string, start, end *time.Time) bool {
	if start == nil && end == nil {
		return true
	}
	t, ok := dates.Parse(dateText)
	if !ok {
		return true
	}
	lo := time.Unix(0, 0)
	if start != nil {
		lo = startOfDay(*start)
	}
	hi := time.Now()
	if end != nil {
		hi = endOfDay(*end)
	}
	return !t.Before(lo) && !t.After(hi)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Transfers returns the subset of receipts matching every enabled criterion.
func Transfers(list []records.TransferReceipt, c TransferCriteria) []records.TransferReceipt {
	out := make([]records.TransferReceipt, 0, len(list))
	for _, t := range list {
		if !withinRange(t.SubmissionDate, c.StartDate, c.EndDate) {
			continue
		}
		if c.ClientSearch != "" &&
			!containsFold(t.ClientNumber, c.ClientSearch) &&
			!containsFold(t.ClientName, c.ClientSearch) {
			continue
		}
		if c.OrderSearch != "" && !containsFold(t.OrderNumber, c.OrderSearch) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Incidents returns the subset of incidents matching every enabled criterion.
func Incidents(list []records.Incident, c IncidentCriteria) []records.Incident {
	out := make([]records.Incident, 0, len(list))
	for _, inc := range list {
		if !withinRange(inc.IncidentDate, c.StartDate, c.EndDate) {
			continue
		}
		if c.ClientSearch != "" &&
			!containsFold(inc.ClientNumber, c.ClientSearch) &&
			!containsFold(inc.ClientName, c.ClientSearch) {
			continue
		}
		if c.OrderSearch != "" && !containsFold(inc.OrderNumber, c.OrderSearch) {
			continue
		}
		if c.SourceFilter != "" && !strings.EqualFold(inc.Source, c.SourceFilter) {
			continue
		}
		if c.TypeFilter != "" && !strings.EqualFold(inc.IncidentType, c.TypeFilter) {
			continue
		}
		if c.StatusFilter != "" && !strings.EqualFold(inc.Status, c.StatusFilter) {
			continue
		}
		out = append(out, inc)
	}
	return out
}

// Messages returns the subset of messages matching every enabled criterion.
func Messages(list []records.WhatsAppMessage, c MessageCriteria) []records.WhatsAppMessage {
	out := make([]records.WhatsAppMessage, 0, len(list))
	for _, m := range list {
		if !withinRange(m.Timestamp, c.StartDate, c.EndDate) {
			continue
		}
		if c.SearchTerm != "" &&
			!containsFold(m.Phone, c.SearchTerm) &&
			!containsFold(m.Text, c.SearchTerm) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// moreRecent is the strict ordering shared by the descending sorts: valid
// dates before unparsable ones, later dates first, later rows first on ties.
func moreRecent(dateA string, rowA int, dateB string, rowB int) bool {
	ta, okA := dates.Parse(dateA)
	tb, okB := dates.Parse(dateB)
	if okA != okB {
		return okA
	}
	if okA && okB && !ta.Equal(tb) {
		return ta.After(tb)
	}
	return rowA > rowB
}

// SortTransfersDesc orders receipts most-recent first. The input is copied.
func SortTransfersDesc(list []records.TransferReceipt) []records.TransferReceipt {
	out := make([]records.TransferReceipt, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool {
		return moreRecent(out[i].SubmissionDate, out[i].RowIndex, out[j].SubmissionDate, out[j].RowIndex)
	})
	return out
}

// SortIncidentsDesc orders incidents most-recent first. The input is copied.
func SortIncidentsDesc(list []records.Incident) []records.Incident {
	out := make([]records.Incident, len(list))
	copy(out, list)
	sort.Slice(out, func(i, j int) bool {
		return moreRecent(out[i].IncidentDate, out[i].RowIndex, out[j].IncidentDate, out[j].RowIndex)
	})
	return out
}

// GroupConversations partitions messages by phone number into conversation
// aggregates. Within a conversation messages run ascending by parsed
// timestamp (unparsable after parsed, row index breaking ties); the
// conversation list runs descending by last-message date, tie-broken by
// phone for a deterministic order.
func GroupConversations(msgs []records.WhatsAppMessage) []records.Conversation {
	byPhone := make(map[string][]records.WhatsAppMessage)
	var phones []string
	for _, m := range msgs {
		if _, seen := byPhone[m.Phone]; !seen {
			phones = append(phones, m.Phone)
		}
		byPhone[m.Phone] = append(byPhone[m.Phone], m)
	}

	conversations := make([]records.Conversation, 0, len(phones))
	for _, phone := range phones {
		msgs := byPhone[phone]
		sort.Slice(msgs, func(i, j int) bool {
			ta, okA := dates.Parse(msgs[i].Timestamp)
			tb, okB := dates.Parse(msgs[j].Timestamp)
			if okA != okB {
				return okA
			}
			if okA && okB && !ta.Equal(tb) {
				return ta.Before(tb)
			}
			return msgs[i].RowIndex < msgs[j].RowIndex
		})

		last := time.Unix(0, 0)
		if t, ok := dates.Parse(msgs[len(msgs)-1].Timestamp); ok {
			last = t
		}

		conversations = append(conversations, records.Conversation{
			Phone:           phone,
			Messages:        msgs,
			LastMessageDate: last,
			MessageCount:    len(msgs),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		if !conversations[i].LastMessageDate.Equal(conversations[j].LastMessageDate) {
			return conversations[i].LastMessageDate.After(conversations[j].LastMessageDate)
		}
		return conversations[i].Phone < conversations[j].Phone
	})

	return conversations
}

// DistinctSources collects the distinct source values from the unfiltered
// incident set, sorted, for the filter-option vocabulary.
func DistinctSources(list []records.Incident) []string {
	return distinct(list, func(i records.Incident) string { return i.Source })
}

// DistinctIncidentTypes collects the distinct incident types, sorted.
func DistinctIncidentTypes(list []records.Incident) []string {
	return distinct(list, func(i records.Incident) string { return i.IncidentType })
}

func distinct(list []records.Incident, key func(records.Incident) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, inc := range list {
		k := key(inc)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
