package metrics

import (
	"database/sql"
	"time"
)

// DBPoolStats is a snapshot of database/sql pool counters.
type DBPoolStats struct {
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	MaxOpenConnections int           `json:"max_open_connections"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// GetDBPoolStats reads the pool counters of db.
func GetDBPoolStats(db *sql.DB) DBPoolStats {
	if db == nil {
		return DBPoolStats{}
	}
	s := db.Stats()
	return DBPoolStats{
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		MaxOpenConnections: s.MaxOpenConnections,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}
}

// PoolHealthStatus grades pool utilization.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// PoolHealth is the assessment reported by the readiness probe.
type PoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Utilization float64          `json:"utilization"`
	Message     string           `json:"message,omitempty"`
}

// AssessDBPoolHealth grades the pool: >=95% in use is unhealthy, >=80% or
// more than 5s of accumulated waiting is degraded.
func AssessDBPoolHealth(stats DBPoolStats) PoolHealth {
	if stats.MaxOpenConnections == 0 {
		return PoolHealth{Status: PoolHealthy, Message: "unlimited connections"}
	}

	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	health := PoolHealth{Status: PoolHealthy, Utilization: utilization, Message: "pool operating normally"}

	switch {
	case utilization >= 0.95:
		health.Status, health.Message = PoolUnhealthy, "pool nearly exhausted"
	case utilization >= 0.80:
		health.Status, health.Message = PoolDegraded, "high pool utilization"
	}

	if stats.WaitCount > 0 && stats.WaitDuration > 5*time.Second {
		if health.Status == PoolHealthy {
			health.Status = PoolDegraded
		}
		health.Message = "elevated connection wait times"
	}
	return health
}
