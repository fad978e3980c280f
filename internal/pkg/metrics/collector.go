package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// PoolCollector samples connection pool statistics into gauges.
type PoolCollector struct {
	db       *pgxpool.Pool
	redis    *redis.Client
	interval time.Duration
}

// NewPoolCollector creates a collector for db and, when not nil, rdb.
func NewPoolCollector(db *pgxpool.Pool, rdb *redis.Client, interval time.Duration) *PoolCollector {
	return &PoolCollector{db: db, redis: rdb, interval: interval}
}

// Run samples once immediately and then every interval until ctx is done.
func (c *PoolCollector) Run(ctx context.Context) {
	c.Collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-ctx.Done():
			return
		}
	}
}

// Collect takes one sample.
func (c *PoolCollector) Collect() {
	stats := c.db.Stat()
	DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
	DBPoolConnections.WithLabelValues("constructing").Set(float64(stats.ConstructingConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
	DBPoolAcquireWait.Set(stats.AcquireDuration().Seconds())

	if c.redis == nil {
		return
	}
	rs := c.redis.PoolStats()
	RedisPoolConnections.WithLabelValues("total").Set(float64(rs.TotalConns))
	RedisPoolConnections.WithLabelValues("idle").Set(float64(rs.IdleConns))
	RedisPoolConnections.WithLabelValues("stale").Set(float64(rs.StaleConns))
	RedisPoolTimeouts.Set(float64(rs.Timeouts))
}
