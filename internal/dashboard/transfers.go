package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"granel_dashboard/internal/filter"
	"granel_dashboard/internal/records"
	"granel_dashboard/internal/viewed"
)

// TransferDashboard drives the transfer-receipts view.
type TransferDashboard struct {
	st    *state[records.TransferReceipt]
	store *viewed.Store

	mu      sync.Mutex
	filters filter.TransferCriteria
}

// TransferSnapshot is everything the presentation layer needs for one
// render: the filtered and sorted records, the full set for deriving filter
// options, and the lifecycle flags.
type TransferSnapshot struct {
	Transfers []records.TransferReceipt `json:"transfers"`
	All       []records.TransferReceipt `json:"allTransfers"`
	ViewedIDs []string                  `json:"viewedIds"`
	Loading   bool                      `json:"loading"`
	Error     string                    `json:"error,omitempty"`
	Filters   filter.TransferCriteria   `json:"filters"`
}

// NewTransferDashboard builds the controller. A nil fetch func puts the
// dashboard in a permanent configuration-error state.
func NewTransferDashboard(fetch func(ctx context.Context) ([]records.TransferReceipt, error), store *viewed.Store) *TransferDashboard {
	return &TransferDashboard{
		st:    newState[records.TransferReceipt](fetch),
		store: store,
	}
}

// Refresh performs a user-visible load: toggles the loading flag and maps
// any failure to the error message.
func (d *TransferDashboard) Refresh(ctx context.Context) {
	if err := d.st.refresh(ctx, false); err != nil {
		log.Error().Err(err).Msg("Transfer load failed")
	}
}

// Run drives the silent periodic refresh until ctx is cancelled.
func (d *TransferDashboard) Run(ctx context.Context, interval time.Duration) {
	runLoop(ctx, interval, "transfers", func(ctx context.Context) error {
		return d.st.refresh(ctx, true)
	})
}

func (d *TransferDashboard) SetFilters(f filter.TransferCriteria) {
	d.mu.Lock()
	d.filters = f
	d.mu.Unlock()
}

func (d *TransferDashboard) Filters() filter.TransferCriteria {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filters
}

// ToggleViewed flips the viewed flag for a receipt and persists the set.
func (d *TransferDashboard) ToggleViewed(t records.TransferReceipt) (bool, error) {
	return d.store.Toggle(viewed.Transfers, viewed.TransferID(t))
}

// Snapshot assembles the current view: filter, sort, then merge the viewed
// overlay onto the outgoing copies.
func (d *TransferDashboard) Snapshot() TransferSnapshot {
	all, loading, errMsg := d.st.view()
	filters := d.Filters()

	filtered := filter.SortTransfersDesc(filter.Transfers(all, filters))
	d.markViewed(filtered)
	d.markViewed(all)

	return TransferSnapshot{
		Transfers: filtered,
		All:       all,
		ViewedIDs: d.store.IDs(viewed.Transfers),
		Loading:   loading,
		Error:     errMsg,
		Filters:   filters,
	}
}

func (d *TransferDashboard) markViewed(list []records.TransferReceipt) {
	for i := range list {
		list[i].Viewed = d.store.Contains(viewed.Transfers, viewed.TransferID(list[i]))
	}
}
