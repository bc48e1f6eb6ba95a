package config

import (
	"time"

	"granel_dashboard/internal/retry"
)

// ResilienceConfig groups the retry profiles for the operations that are
// allowed to retry. Dashboard loads deliberately have no profile: a failed
// manual load surfaces to the user, and a failed silent refresh just waits
// for the next tick.
type ResilienceConfig struct {
	SheetRead retry.Config
	Notify    retry.Config
}

var DefaultResilience = ResilienceConfig{
	SheetRead: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	Notify: retry.Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   20 * time.Second,
		Timeout:    10 * time.Second,
	},
}
