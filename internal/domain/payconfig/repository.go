package payconfig

import (
	"context"
	"time"
)

// ConfigRepository reads approved configuration snapshots. Only approved
// records are visible here; the configuration subsystem owns the drafts.
type ConfigRepository interface {
	Snapshot(ctx context.Context, entity string, period time.Time) (Snapshot, error)
}
