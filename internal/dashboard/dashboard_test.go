package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"granel_dashboard/internal/filter"
	"granel_dashboard/internal/records"
	"granel_dashboard/internal/viewed"
)

func newTestStore(t *testing.T) *viewed.Store {
	t.Helper()
	store, err := viewed.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return store
}

func staticTransfers(list []records.TransferReceipt) func(context.Context) ([]records.TransferReceipt, error) {
	return func(context.Context) ([]records.TransferReceipt, error) {
		return list, nil
	}
}

func staticIncidents(list []records.Incident) func(context.Context) ([]records.Incident, error) {
	return func(context.Context) ([]records.Incident, error) {
		return list, nil
	}
}

func TestTransferDashboardInitialLoad(t *testing.T) {
	d := NewTransferDashboard(staticTransfers([]records.TransferReceipt{
		{ClientNumber: "555123", OrderNumber: "P-1001", SubmissionDate: "04/02/2026", RowIndex: 0},
		{ClientNumber: "555456", OrderNumber: "P-1002", SubmissionDate: "10/02/2026", RowIndex: 1},
	}), newTestStore(t))

	snap := d.Snapshot()
	if !snap.Loading {
		t.Error("Expected loading before the first refresh")
	}

	d.Refresh(context.Background())

	snap = d.Snapshot()
	if snap.Loading {
		t.Error("Expected loading to clear after refresh")
	}
	if snap.Error != "" {
		t.Errorf("Expected no error, got %q", snap.Error)
	}
	if len(snap.Transfers) != 2 {
		t.Fatalf("Expected 2 transfers, got %d", len(snap.Transfers))
	}
	// Descending by date.
	if snap.Transfers[0].OrderNumber != "P-1002" {
		t.Errorf("Expected most recent first, got %s", snap.Transfers[0].OrderNumber)
	}
}

func TestNilFetchIsPermanentConfigError(t *testing.T) {
	d := NewTransferDashboard(nil, newTestStore(t))

	snap := d.Snapshot()
	if snap.Loading {
		t.Error("Expected no loading for unconfigured dashboard")
	}
	if snap.Error != MsgMissingConfig {
		t.Errorf("Expected %q, got %q", MsgMissingConfig, snap.Error)
	}

	d.Refresh(context.Background())
	if got := d.Snapshot().Error; got != MsgMissingConfig {
		t.Errorf("Expected error to persist across refreshes, got %q", got)
	}
}

func TestRefreshFailureSetsError(t *testing.T) {
	d := NewTransferDashboard(func(context.Context) ([]records.TransferReceipt, error) {
		return nil, errors.New("fetch exploded")
	}, newTestStore(t))

	d.Refresh(context.Background())

	snap := d.Snapshot()
	if snap.Loading {
		t.Error("Expected loading to clear on failure")
	}
	if snap.Error != "fetch exploded" {
		t.Errorf("Expected fetch error, got %q", snap.Error)
	}
}

func TestSilentRefreshKeepsDataOnFailure(t *testing.T) {
	calls := 0
	d := NewTransferDashboard(func(context.Context) ([]records.TransferReceipt, error) {
		calls++
		if calls == 1 {
			return []records.TransferReceipt{{OrderNumber: "P-1001", RowIndex: 0}}, nil
		}
		return nil, errors.New("sheet unavailable")
	}, newTestStore(t))

	d.Refresh(context.Background())
	if err := d.st.refresh(context.Background(), true); err == nil {
		t.Fatal("Expected silent refresh to report the fetch error")
	}

	snap := d.Snapshot()
	if snap.Error != "" {
		t.Errorf("Expected silent failure to leave no user-visible error, got %q", snap.Error)
	}
	if len(snap.Transfers) != 1 {
		t.Errorf("Expected previously loaded data to survive, got %d transfers", len(snap.Transfers))
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	// The first fetch blocks until released; a second fetch completes in the
	// meantime. The slow first response must not clobber the newer one.
	release := make(chan struct{})
	calls := 0
	var mu sync.Mutex

	d := NewTransferDashboard(func(context.Context) ([]records.TransferReceipt, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			<-release
			return []records.TransferReceipt{{OrderNumber: "STALE", RowIndex: 0}}, nil
		}
		return []records.TransferReceipt{{OrderNumber: "FRESH", RowIndex: 0}}, nil
	}, newTestStore(t))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Refresh(context.Background())
	}()

	// Wait until the slow fetch is in flight before starting the fast one.
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	d.Refresh(context.Background())
	close(release)
	wg.Wait()

	snap := d.Snapshot()
	if len(snap.Transfers) != 1 || snap.Transfers[0].OrderNumber != "FRESH" {
		t.Errorf("Expected the newer response to win, got %v", snap.Transfers)
	}
}

type fakeWriter struct {
	ok    bool
	calls []struct {
		rowIndex int
		status   string
	}
}

func (w *fakeWriter) PostStatus(_ context.Context, rowIndex int, status string) bool {
	w.calls = append(w.calls, struct {
		rowIndex int
		status   string
	}{rowIndex, status})
	return w.ok
}

type fakeNotifier struct {
	batches [][]records.Incident
}

func (n *fakeNotifier) NotifyNewIncidents(_ context.Context, incidents []records.Incident) {
	n.batches = append(n.batches, incidents)
}

func TestToggleStatusOptimisticWrite(t *testing.T) {
	writer := &fakeWriter{ok: true}
	d := NewIncidentDashboard(staticIncidents([]records.Incident{
		{RowIndex: 0, Status: records.StatusOpen, OrderNumber: "P-1001"},
	}), newTestStore(t), writer, nil)
	d.Refresh(context.Background())

	next, ok := d.ToggleStatus(context.Background(), 0)
	if !ok {
		t.Fatal("Expected toggle to report success")
	}
	if next != records.StatusClosed {
		t.Errorf("Expected toggle to close an open incident, got %q", next)
	}
	if len(writer.calls) != 1 || writer.calls[0].rowIndex != 0 || writer.calls[0].status != records.StatusClosed {
		t.Errorf("Unexpected write calls: %v", writer.calls)
	}
	if got := d.Snapshot().Incidents[0].Status; got != records.StatusClosed {
		t.Errorf("Expected status %q after toggle, got %q", records.StatusClosed, got)
	}
}

func TestSetStatusRollsBackOnTransportFailure(t *testing.T) {
	writer := &fakeWriter{ok: false}
	d := NewIncidentDashboard(staticIncidents([]records.Incident{
		{RowIndex: 0, Status: records.StatusOpen},
	}), newTestStore(t), writer, nil)
	d.Refresh(context.Background())

	if d.SetStatus(context.Background(), 0, records.StatusClosed) {
		t.Fatal("Expected failed write to report false")
	}
	if got := d.Snapshot().Incidents[0].Status; got != records.StatusOpen {
		t.Errorf("Expected rollback to %q, got %q", records.StatusOpen, got)
	}
}

func TestSetStatusNilWriterFailsClosed(t *testing.T) {
	d := NewIncidentDashboard(staticIncidents([]records.Incident{
		{RowIndex: 0, Status: records.StatusOpen},
	}), newTestStore(t), nil, nil)
	d.Refresh(context.Background())

	if d.SetStatus(context.Background(), 0, records.StatusClosed) {
		t.Error("Expected nil writer to fail the write")
	}
	if got := d.Snapshot().Incidents[0].Status; got != records.StatusOpen {
		t.Errorf("Expected rollback, got %q", got)
	}
}

func TestToggleStatusUnknownRow(t *testing.T) {
	d := NewIncidentDashboard(staticIncidents(nil), newTestStore(t), &fakeWriter{ok: true}, nil)
	d.Refresh(context.Background())

	if _, ok := d.ToggleStatus(context.Background(), 42); ok {
		t.Error("Expected toggle of unknown row to fail")
	}
}

func TestRefreshNotifiesOnlyAppendedRows(t *testing.T) {
	first := []records.Incident{
		{RowIndex: 0, IncidentType: "Faltante"},
		{RowIndex: 1, IncidentType: "Rotura"},
	}
	grown := append(append([]records.Incident{}, first...), records.Incident{RowIndex: 2, IncidentType: "Retraso"})

	calls := 0
	notifier := &fakeNotifier{}
	d := NewIncidentDashboard(func(context.Context) ([]records.Incident, error) {
		calls++
		if calls == 1 {
			return first, nil
		}
		return grown, nil
	}, newTestStore(t), nil, notifier)

	// Initial load never notifies: everything is "new" on a cold start.
	d.Refresh(context.Background())
	if len(notifier.batches) != 0 {
		t.Fatalf("Expected no notification on initial load, got %v", notifier.batches)
	}

	d.Refresh(context.Background())
	if len(notifier.batches) != 1 {
		t.Fatalf("Expected 1 notification batch, got %d", len(notifier.batches))
	}
	batch := notifier.batches[0]
	if len(batch) != 1 || batch[0].RowIndex != 2 {
		t.Errorf("Expected only the appended row, got %v", batch)
	}
}

func TestTransferViewedOverlay(t *testing.T) {
	receipt := records.TransferReceipt{ClientNumber: "555123", OrderNumber: "P-1001", SubmissionDate: "04/02/2026", RowIndex: 0}
	d := NewTransferDashboard(staticTransfers([]records.TransferReceipt{receipt}), newTestStore(t))
	d.Refresh(context.Background())

	if d.Snapshot().Transfers[0].Viewed {
		t.Error("Expected receipt to start unviewed")
	}

	if _, err := d.ToggleViewed(receipt); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !d.Snapshot().Transfers[0].Viewed {
		t.Error("Expected viewed flag after toggle")
	}

	// A refresh replaces the records wholesale; the overlay survives.
	d.Refresh(context.Background())
	if !d.Snapshot().Transfers[0].Viewed {
		t.Error("Expected viewed flag to survive a refresh")
	}
}

func TestWhatsAppSnapshotGroupsConversations(t *testing.T) {
	d := NewWhatsAppDashboard(func(context.Context) ([]records.WhatsAppMessage, error) {
		return []records.WhatsAppMessage{
			{Timestamp: "2026-02-04 10:00:00", Phone: "555123", Text: "hola", RowIndex: 0},
			{Timestamp: "2026-02-05 09:00:00", Phone: "555456", Text: "buenas", RowIndex: 1},
			{Timestamp: "2026-02-04 10:00:05", Phone: "555123", Text: "respuesta", RowIndex: 2},
		}, nil
	})
	d.Refresh(context.Background())

	snap := d.Snapshot()
	if len(snap.Conversations) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(snap.Conversations))
	}

	conv, ok := d.Conversation("555123")
	if !ok {
		t.Fatal("Expected to find the 555123 conversation")
	}
	if conv.MessageCount != 2 {
		t.Errorf("Expected 2 messages, got %d", conv.MessageCount)
	}

	if _, ok := d.Conversation("000000"); ok {
		t.Error("Expected lookup of unknown phone to fail")
	}
}

func TestWhatsAppFilterNarrowsConversations(t *testing.T) {
	d := NewWhatsAppDashboard(func(context.Context) ([]records.WhatsAppMessage, error) {
		return []records.WhatsAppMessage{
			{Timestamp: "2026-02-04 10:00:00", Phone: "555123", Text: "hola", RowIndex: 0},
			{Timestamp: "2026-02-05 09:00:00", Phone: "555456", Text: "buenas", RowIndex: 1},
		}, nil
	})
	d.Refresh(context.Background())

	d.SetFilters(filter.MessageCriteria{SearchTerm: "buenas"})
	snap := d.Snapshot()
	if len(snap.Conversations) != 1 || snap.Conversations[0].Phone != "555456" {
		t.Errorf("Expected only the matching conversation, got %v", snap.Conversations)
	}
}
