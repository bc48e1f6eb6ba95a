package filter

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"granel_dashboard/internal/records"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.Local)
	return &t
}

func sampleTransfers() []records.TransferReceipt {
	return []records.TransferReceipt{
		{ClientNumber: "555123", ClientName: "Ana García", OrderNumber: "P-1001", SubmissionDate: "04/02/2026", RowIndex: 0},
		{ClientNumber: "555456", ClientName: "Bob Pérez", OrderNumber: "P-1002", SubmissionDate: "10/02/2026", RowIndex: 1},
		{ClientNumber: "555789", ClientName: "Carla Ruiz", OrderNumber: "Q-2001", SubmissionDate: "pendiente", RowIndex: 2},
	}
}

func TestTransfersEmptyCriteriaIsIdentity(t *testing.T) {
	list := sampleTransfers()
	got := Transfers(list, TransferCriteria{})
	if diff := cmp.Diff(list, got); diff != "" {
		t.Errorf("Empty criteria changed the set (-want +got):\n%s", diff)
	}
}

func TestTransfersClientSearchCaseInsensitive(t *testing.T) {
	got := Transfers(sampleTransfers(), TransferCriteria{ClientSearch: "bob"})
	if len(got) != 1 || got[0].ClientName != "Bob Pérez" {
		t.Errorf("Expected only Bob Pérez, got %v", got)
	}
}

func TestTransfersSearchMatchesClientNumber(t *testing.T) {
	got := Transfers(sampleTransfers(), TransferCriteria{ClientSearch: "555789"})
	if len(got) != 1 || got[0].ClientNumber != "555789" {
		t.Errorf("Expected match on client number, got %v", got)
	}
}

func TestTransfersDateRange(t *testing.T) {
	got := Transfers(sampleTransfers(), TransferCriteria{
		StartDate: datePtr(2026, time.February, 5),
		EndDate:   datePtr(2026, time.February, 28),
	})
	// The 04/02 receipt falls before the range; the unparsable one is
	// outside the date filter's jurisdiction and stays.
	if len(got) != 2 {
		t.Fatalf("Expected 2 receipts, got %d", len(got))
	}
	if got[0].OrderNumber != "P-1002" || got[1].OrderNumber != "Q-2001" {
		t.Errorf("Unexpected receipts: %v", got)
	}
}

func TestTransfersDateRangeInclusiveBounds(t *testing.T) {
	got := Transfers(sampleTransfers(), TransferCriteria{
		StartDate: datePtr(2026, time.February, 4),
		EndDate:   datePtr(2026, time.February, 4),
	})
	found := false
	for _, r := range got {
		if r.OrderNumber == "P-1001" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a receipt dated on the boundary day to match")
	}
}

func TestTransfersCriteriaAreANDed(t *testing.T) {
	got := Transfers(sampleTransfers(), TransferCriteria{
		ClientSearch: "ana",
		OrderSearch:  "Q-",
	})
	if len(got) != 0 {
		t.Errorf("Expected no receipt to satisfy both criteria, got %v", got)
	}
}

func TestTransfersSubsetLaw(t *testing.T) {
	list := sampleTransfers()
	got := Transfers(list, TransferCriteria{OrderSearch: "p-10"})
	if len(got) >= len(list) {
		t.Fatalf("Expected a strict subset, got %d of %d", len(got), len(list))
	}
	for _, r := range got {
		found := false
		for _, orig := range list {
			if orig.RowIndex == r.RowIndex {
				found = true
			}
		}
		if !found {
			t.Errorf("Filtered result %v not present in input", r)
		}
	}
}

func sampleIncidents() []records.Incident {
	return []records.Incident{
		{ClientNumber: "555123", ClientName: "Ana", OrderNumber: "P-1001", IncidentType: "Faltante", Source: "whatsapp", Status: records.StatusOpen, IncidentDate: "04/02/2026", RowIndex: 0},
		{ClientNumber: "555456", ClientName: "Luis", OrderNumber: "P-1002", IncidentType: "Rotura", Source: "email", Status: records.StatusClosed, IncidentDate: "05/02/2026", RowIndex: 1},
		{ClientNumber: "555789", ClientName: "Marta", OrderNumber: "P-1003", IncidentType: "Faltante", Source: "whatsapp", Status: records.StatusOpen, IncidentDate: "06/02/2026", RowIndex: 2},
	}
}

func TestIncidentsCategoricalFilters(t *testing.T) {
	list := sampleIncidents()

	got := Incidents(list, IncidentCriteria{SourceFilter: "WHATSAPP"})
	if len(got) != 2 {
		t.Errorf("Expected 2 whatsapp incidents, got %d", len(got))
	}

	got = Incidents(list, IncidentCriteria{TypeFilter: "faltante", StatusFilter: "abierta"})
	if len(got) != 2 {
		t.Errorf("Expected 2 open faltante incidents, got %d", len(got))
	}

	got = Incidents(list, IncidentCriteria{SourceFilter: "email", StatusFilter: records.StatusOpen})
	if len(got) != 0 {
		t.Errorf("Expected no open email incidents, got %v", got)
	}
}

func TestSortTransfersDesc(t *testing.T) {
	list := []records.TransferReceipt{
		{SubmissionDate: "sin fecha", RowIndex: 0},
		{SubmissionDate: "04/02/2026", RowIndex: 1},
		{SubmissionDate: "10/02/2026", RowIndex: 2},
		{SubmissionDate: "10/02/2026", RowIndex: 3},
		{SubmissionDate: "también sin fecha", RowIndex: 4},
	}

	got := SortTransfersDesc(list)

	wantRows := []int{3, 2, 1, 4, 0}
	for i, want := range wantRows {
		if got[i].RowIndex != want {
			t.Errorf("Position %d: expected row %d, got %d", i, want, got[i].RowIndex)
		}
	}
	if list[0].RowIndex != 0 {
		t.Error("Expected input slice to keep its order")
	}
}

func TestSortTransfersDescIdempotent(t *testing.T) {
	list := sampleTransfers()
	once := SortTransfersDesc(list)
	twice := SortTransfersDesc(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Sorting twice changed the order (-once +twice):\n%s", diff)
	}
}

func TestSortIncidentsDesc(t *testing.T) {
	got := SortIncidentsDesc(sampleIncidents())
	wantRows := []int{2, 1, 0}
	for i, want := range wantRows {
		if got[i].RowIndex != want {
			t.Errorf("Position %d: expected row %d, got %d", i, want, got[i].RowIndex)
		}
	}
}

func sampleMessages() []records.WhatsAppMessage {
	return []records.WhatsAppMessage{
		{Timestamp: "2026-02-04 10:00:00", Phone: "555123", Role: records.RoleUser, Text: "hola", RowIndex: 0},
		{Timestamp: "2026-02-05 09:00:00", Phone: "555456", Role: records.RoleUser, Text: "buenas", RowIndex: 1},
		{Timestamp: "2026-02-04 10:00:05", Phone: "555123", Role: records.RoleBot, Text: "hola, ¿en qué ayudo?", RowIndex: 2},
		{Timestamp: "???", Phone: "555123", Role: records.RoleUser, Text: "adjunto comprobante", RowIndex: 3},
	}
}

func TestMessagesSearchTerm(t *testing.T) {
	got := Messages(sampleMessages(), MessageCriteria{SearchTerm: "buenas"})
	if len(got) != 1 || got[0].Phone != "555456" {
		t.Errorf("Expected the 555456 message, got %v", got)
	}

	got = Messages(sampleMessages(), MessageCriteria{SearchTerm: "555123"})
	if len(got) != 3 {
		t.Errorf("Expected 3 messages by phone match, got %d", len(got))
	}
}

func TestGroupConversations(t *testing.T) {
	convs := GroupConversations(sampleMessages())
	if len(convs) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(convs))
	}

	// 555123's final message has an unparsable timestamp, so its
	// conversation falls back to the epoch and 555456 leads the list.
	if convs[0].Phone != "555456" {
		t.Errorf("Expected 555456 first, got %s", convs[0].Phone)
	}

	c := convs[1]
	if c.Phone != "555123" {
		t.Fatalf("Expected 555123 second, got %s", c.Phone)
	}
	if c.MessageCount != 3 || len(c.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got count=%d len=%d", c.MessageCount, len(c.Messages))
	}
	// Ascending by timestamp, unparsable last.
	wantRows := []int{0, 2, 3}
	for i, want := range wantRows {
		if c.Messages[i].RowIndex != want {
			t.Errorf("Message %d: expected row %d, got %d", i, want, c.Messages[i].RowIndex)
		}
	}
}

func TestGroupConversationsEveryMessageAppearsOnce(t *testing.T) {
	msgs := sampleMessages()
	convs := GroupConversations(msgs)

	total := 0
	seen := make(map[int]bool)
	for _, c := range convs {
		total += c.MessageCount
		for _, m := range c.Messages {
			if seen[m.RowIndex] {
				t.Errorf("Message row %d appears in more than one conversation", m.RowIndex)
			}
			seen[m.RowIndex] = true
			if m.Phone != c.Phone {
				t.Errorf("Message row %d with phone %s grouped under %s", m.RowIndex, m.Phone, c.Phone)
			}
		}
	}
	if total != len(msgs) {
		t.Errorf("Expected %d messages across conversations, got %d", len(msgs), total)
	}
}

func TestGroupConversationsUnparsableLastMessage(t *testing.T) {
	convs := GroupConversations([]records.WhatsAppMessage{
		{Timestamp: "???", Phone: "555999", RowIndex: 0},
	})
	if len(convs) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(convs))
	}
	if !convs[0].LastMessageDate.Equal(time.Unix(0, 0)) {
		t.Errorf("Expected epoch fallback, got %v", convs[0].LastMessageDate)
	}
}

func TestDistinctVocabularies(t *testing.T) {
	list := append(sampleIncidents(), records.Incident{IncidentType: "", Source: "", RowIndex: 9})

	sources := DistinctSources(list)
	if diff := cmp.Diff([]string{"email", "whatsapp"}, sources); diff != "" {
		t.Errorf("Sources mismatch (-want +got):\n%s", diff)
	}

	types := DistinctIncidentTypes(list)
	if diff := cmp.Diff([]string{"Faltante", "Rotura"}, types); diff != "" {
		t.Errorf("Types mismatch (-want +got):\n%s", diff)
	}
}
