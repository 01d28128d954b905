package application

import (
	"time"

	"github.com/bnema/seedpool/internal/domain"
)

// Stats is the monitoring view served on the stats endpoint.
type Stats struct {
	PoolSize              int                 `json:"poolSize" yaml:"pool_size"`
	PoolCapacity          int                 `json:"poolCapacity" yaml:"pool_capacity"`
	PoolUtilization       float64             `json:"poolUtilization" yaml:"pool_utilization"`
	LastRefresh           *time.Time          `json:"lastRefresh" yaml:"last_refresh"`
	ConfiguredSourceCount int                 `json:"configuredSourceCount" yaml:"configured_source_count"`
	MediaSources          []string            `json:"mediaSources" yaml:"media_sources"`
	RefreshInProgress     bool                `json:"refreshInProgress" yaml:"refresh_in_progress"`
	RefreshState          domain.RefreshPhase `json:"refreshState" yaml:"refresh_state"`
	ConsecutiveFailures   int                 `json:"consecutiveFailures" yaml:"consecutive_failures"`
	Timestamp             time.Time           `json:"timestamp" yaml:"timestamp"`
}
