package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"granel_dashboard/internal/filter"
	"granel_dashboard/internal/records"
)

// WhatsAppDashboard drives the message-log view, aggregating messages into
// per-phone conversations.
type WhatsAppDashboard struct {
	st *state[records.WhatsAppMessage]

	mu      sync.Mutex
	filters filter.MessageCriteria
}

type WhatsAppSnapshot struct {
	Conversations []records.Conversation    `json:"conversations"`
	All           []records.WhatsAppMessage `json:"allMessages"`
	Loading       bool                      `json:"loading"`
	Error         string                    `json:"error,omitempty"`
	Filters       filter.MessageCriteria    `json:"filters"`
}

func NewWhatsAppDashboard(fetch func(ctx context.Context) ([]records.WhatsAppMessage, error)) *WhatsAppDashboard {
	return &WhatsAppDashboard{
		st: newState[records.WhatsAppMessage](fetch),
	}
}

func (d *WhatsAppDashboard) Refresh(ctx context.Context) {
	if err := d.st.refresh(ctx, false); err != nil {
		log.Error().Err(err).Msg("Message load failed")
	}
}

func (d *WhatsAppDashboard) Run(ctx context.Context, interval time.Duration) {
	runLoop(ctx, interval, "whatsapp", func(ctx context.Context) error {
		return d.st.refresh(ctx, true)
	})
}

func (d *WhatsAppDashboard) SetFilters(f filter.MessageCriteria) {
	d.mu.Lock()
	d.filters = f
	d.mu.Unlock()
}

func (d *WhatsAppDashboard) Filters() filter.MessageCriteria {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filters
}

func (d *WhatsAppDashboard) Snapshot() WhatsAppSnapshot {
	all, loading, errMsg := d.st.view()
	filters := d.Filters()

	return WhatsAppSnapshot{
		Conversations: filter.GroupConversations(filter.Messages(all, filters)),
		All:           all,
		Loading:       loading,
		Error:         errMsg,
		Filters:       filters,
	}
}

// Conversation returns the aggregate for one phone under the current
// filters, if any of its messages survive them.
func (d *WhatsAppDashboard) Conversation(phone string) (records.Conversation, bool) {
	for _, c := range d.Snapshot().Conversations {
		if c.Phone == phone {
			return c, true
		}
	}
	return records.Conversation{}, false
}
