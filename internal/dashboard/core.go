// Package dashboard owns the per-view state machines: fetch lifecycle,
// loading and error state, filter criteria, and the local mutation overlay
// (viewed flags, optimistic status writes).
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MsgMissingConfig is the persistent error shown when a dashboard has no
// usable source configuration. It blocks loading and is never retried.
const MsgMissingConfig = "Configuración incompleta: falta el ID del spreadsheet"

type fetchFunc[T any] func(ctx context.Context) ([]T, error)

// state is the shared fetch-state core. The record slice is a single owned
// value: replaced wholesale on fetch, rebuilt with one element swapped on
// patch, never mutated in place.
type state[T any] struct {
	mu        sync.Mutex
	fetch     fetchFunc[T]
	all       []T
	loading   bool
	lastErr   string
	configErr bool

	// Monotonic fetch sequencing. Overlapping refreshes are not cancelled;
	// instead a response is applied only if nothing newer has been applied,
	// so a slow early request can never clobber fresher data.
	seq     uint64
	applied uint64
}

func newState[T any](fetch fetchFunc[T]) *state[T] {
	s := &state[T]{fetch: fetch}
	if fetch == nil {
		s.configErr = true
		s.lastErr = MsgMissingConfig
	} else {
		s.loading = true
	}
	return s
}

// refresh performs one fetch cycle. Silent refreshes leave the loading flag
// alone and keep previously loaded data (and its error state) intact on
// failure; the caller decides how to log.
func (s *state[T]) refresh(ctx context.Context, silent bool) error {
	s.mu.Lock()
	if s.configErr {
		s.mu.Unlock()
		return nil
	}
	s.seq++
	seq := s.seq
	if !silent {
		s.loading = true
		s.lastErr = ""
	}
	fetch := s.fetch
	s.mu.Unlock()

	data, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if !silent {
			s.lastErr = err.Error()
			s.loading = false
		}
		return err
	}

	if seq > s.applied {
		s.applied = seq
		s.all = data
	} else {
		log.Debug().
			Uint64("seq", seq).
			Uint64("applied", s.applied).
			Msg("Discarding stale fetch response")
	}
	if !silent {
		s.loading = false
		s.lastErr = ""
	}
	return nil
}

// view returns a copy of the records plus the loading/error flags.
func (s *state[T]) view() ([]T, bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.all))
	copy(out, s.all)
	return out, s.loading, s.lastErr
}

func (s *state[T]) records() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.all))
	copy(out, s.all)
	return out
}

func (s *state[T]) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all)
}

// replace swaps in a patched record slice. Used by the mutation overlay.
func (s *state[T]) replace(list []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = list
}

// runLoop drives the silent periodic refresh until the context is
// cancelled. Failures are logged and swallowed: stale-but-present data
// beats an error flash.
func runLoop(ctx context.Context, interval time.Duration, name string, refresh func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("dashboard", name).Msg("Stopping auto-refresh")
			return
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				log.Error().Err(err).Str("dashboard", name).Msg("Auto-refresh failed")
			}
		}
	}
}
