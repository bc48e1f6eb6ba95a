package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"granel_dashboard/internal/filter"
	"granel_dashboard/internal/records"
	"granel_dashboard/internal/viewed"
)

// StatusWriter is the remote write path for incident status. The boolean
// reflects only whether the write completed at the transport level.
type StatusWriter interface {
	PostStatus(ctx context.Context, rowIndex int, status string) bool
}

// Notifier receives the incidents a refresh discovered beyond the
// previously known rows.
type Notifier interface {
	NotifyNewIncidents(ctx context.Context, incidents []records.Incident)
}

// IncidentDashboard drives the incidents view, including the one remote
// write path the system has: the status toggle.
type IncidentDashboard struct {
	st       *state[records.Incident]
	store    *viewed.Store
	writer   StatusWriter
	notifier Notifier

	mu      sync.Mutex
	filters filter.IncidentCriteria
}

type IncidentSnapshot struct {
	Incidents     []records.Incident      `json:"incidents"`
	All           []records.Incident      `json:"allIncidents"`
	Sources       []string                `json:"sources"`
	IncidentTypes []string                `json:"incidentTypes"`
	ViewedIDs     []string                `json:"viewedIds"`
	Loading       bool                    `json:"loading"`
	Error         string                  `json:"error,omitempty"`
	Filters       filter.IncidentCriteria `json:"filters"`
}

// NewIncidentDashboard builds the controller. writer and notifier may be
// nil; a nil writer makes every status toggle fail closed (and roll back).
func NewIncidentDashboard(fetch func(ctx context.Context) ([]records.Incident, error), store *viewed.Store, writer StatusWriter, notifier Notifier) *IncidentDashboard {
	return &IncidentDashboard{
		st:       newState[records.Incident](fetch),
		store:    store,
		writer:   writer,
		notifier: notifier,
	}
}

func (d *IncidentDashboard) Refresh(ctx context.Context) {
	if err := d.refreshAndNotify(ctx, false); err != nil {
		log.Error().Err(err).Msg("Incident load failed")
	}
}

func (d *IncidentDashboard) Run(ctx context.Context, interval time.Duration) {
	runLoop(ctx, interval, "incidents", func(ctx context.Context) error {
		return d.refreshAndNotify(ctx, true)
	})
}

// refreshAndNotify fetches and, when the sheet grew, hands the appended
// rows to the notifier. New rows are always appended at the bottom of the
// sheet, so anything past the previous length is new.
func (d *IncidentDashboard) refreshAndNotify(ctx context.Context, silent bool) error {
	prev := d.st.count()
	if err := d.st.refresh(ctx, silent); err != nil {
		return err
	}
	if d.notifier == nil || prev == 0 {
		return nil
	}
	cur := d.st.records()
	if len(cur) > prev {
		d.notifier.NotifyNewIncidents(ctx, cur[prev:])
	}
	return nil
}

func (d *IncidentDashboard) SetFilters(f filter.IncidentCriteria) {
	d.mu.Lock()
	d.filters = f
	d.mu.Unlock()
}

func (d *IncidentDashboard) Filters() filter.IncidentCriteria {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filters
}

func (d *IncidentDashboard) ToggleViewed(i records.Incident) (bool, error) {
	return d.store.Toggle(viewed.Incidents, viewed.IncidentID(i))
}

// SetStatus applies an optimistic status change and fires the remote write.
// On transport failure the optimistic patch is rolled back, unless a
// refresh already replaced the record in the meantime. Returns whether the
// write completed at the transport level.
func (d *IncidentDashboard) SetStatus(ctx context.Context, rowIndex int, status string) bool {
	patched, prevStatus, found := records.PatchIncidentStatus(d.st.records(), rowIndex, status)
	if !found {
		log.Warn().Int("row_index", rowIndex).Msg("Status change for unknown row")
		return false
	}
	d.st.replace(patched)

	ok := d.writer != nil && d.writer.PostStatus(ctx, rowIndex, status)
	if !ok {
		reverted, changed := records.RevertIncidentStatus(d.st.records(), rowIndex, status, prevStatus)
		if changed {
			d.st.replace(reverted)
		}
		log.Warn().
			Int("row_index", rowIndex).
			Str("status", status).
			Msg("Status write failed, optimistic change rolled back")
	}
	return ok
}

// ToggleStatus flips a record between the open and closed status values.
// Returns the status it attempted to set.
func (d *IncidentDashboard) ToggleStatus(ctx context.Context, rowIndex int) (string, bool) {
	var current string
	for _, inc := range d.st.records() {
		if inc.RowIndex == rowIndex {
			current = inc.Status
			break
		}
	}
	if current == "" {
		log.Warn().Int("row_index", rowIndex).Msg("Status toggle for unknown row")
		return "", false
	}

	next := records.StatusOpen
	if strings.EqualFold(current, records.StatusOpen) {
		next = records.StatusClosed
	}
	return next, d.SetStatus(ctx, rowIndex, next)
}

func (d *IncidentDashboard) Snapshot() IncidentSnapshot {
	all, loading, errMsg := d.st.view()
	filters := d.Filters()

	filtered := filter.SortIncidentsDesc(filter.Incidents(all, filters))
	d.markViewed(filtered)
	d.markViewed(all)

	return IncidentSnapshot{
		Incidents:     filtered,
		All:           all,
		Sources:       filter.DistinctSources(all),
		IncidentTypes: filter.DistinctIncidentTypes(all),
		ViewedIDs:     d.store.IDs(viewed.Incidents),
		Loading:       loading,
		Error:         errMsg,
		Filters:       filters,
	}
}

func (d *IncidentDashboard) markViewed(list []records.Incident) {
	for i := range list {
		list[i].Viewed = d.store.Contains(viewed.Incidents, viewed.IncidentID(list[i]))
	}
}
