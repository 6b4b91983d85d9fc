// internal/dispatch/history/store.go
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vendor-dispatch/internal/common/database"
	"vendor-dispatch/internal/common/errors"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/models"

	"github.com/lib/pq"
)

const (
	metricsKeyPrefix = "vm:"
	metricsCacheTTL  = 5 * time.Minute
)

const metricsQuery = `
	SELECT completion_rate, rework_rate, avg_response_time_hours,
	       avg_satisfaction, sample_size
	FROM vendor_metrics
	WHERE vendor_id = $1`

const metricsBatchQuery = `
	SELECT vendor_id, completion_rate, rework_rate, avg_response_time_hours,
	       avg_satisfaction, sample_size
	FROM vendor_metrics
	WHERE vendor_id = ANY($1)`

// Store loads historical vendor performance metrics from Postgres with a
// Redis read-through cache in front. A vendor with no recorded history
// is a normal state, not an error: lookups report absence via the bool
// return.
type Store struct {
	db     *database.PostgresClient
	redis  *database.RedisClient
	logger logger.Logger
}

// NewStore creates a metrics store. redis may be nil, in which case
// every lookup goes to Postgres.
func NewStore(db *database.PostgresClient, redis *database.RedisClient, log logger.Logger) *Store {
	return &Store{
		db:     db,
		redis:  redis,
		logger: log.WithFields(map[string]interface{}{"component": "history_store"}),
	}
}

// GetMetrics returns the recorded metrics for one vendor. The second
// return is false when the vendor has no history.
func (s *Store) GetMetrics(ctx context.Context, vendorID string) (models.VendorMetrics, bool, error) {
	if cached, ok := s.cacheGet(ctx, vendorID); ok {
		return cached, true, nil
	}

	var m models.VendorMetrics
	err := s.db.QueryRow(ctx, metricsQuery, vendorID).Scan(
		&m.CompletionRate,
		&m.ReworkRate,
		&m.AvgResponseTimeHours,
		&m.AvgSatisfaction,
		&m.SampleSize,
	)
	if err == sql.ErrNoRows {
		return models.VendorMetrics{}, false, nil
	}
	if err != nil {
		return models.VendorMetrics{}, false, errors.NewMetricsLookupFailedError(vendorID, err)
	}

	s.cacheSet(ctx, vendorID, m)
	return m, true, nil
}

// GetMetricsBatch returns the recorded metrics for all given vendors in
// one query. Vendors without history are simply absent from the result.
func (s *Store) GetMetricsBatch(ctx context.Context, vendorIDs []string) (map[string]models.VendorMetrics, error) {
	out := make(map[string]models.VendorMetrics, len(vendorIDs))
	if len(vendorIDs) == 0 {
		return out, nil
	}

	var misses []string
	for _, id := range vendorIDs {
		if cached, ok := s.cacheGet(ctx, id); ok {
			out[id] = cached
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, metricsBatchQuery, pq.Array(misses))
	if err != nil {
		return nil, errors.NewMetricsLookupFailedError(strings.Join(misses, ","), err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var m models.VendorMetrics
		if err := rows.Scan(&id, &m.CompletionRate, &m.ReworkRate,
			&m.AvgResponseTimeHours, &m.AvgSatisfaction, &m.SampleSize); err != nil {
			return nil, errors.NewMetricsLookupFailedError(strings.Join(misses, ","), fmt.Errorf("scan: %w", err))
		}
		out[id] = m
		s.cacheSet(ctx, id, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewMetricsLookupFailedError(strings.Join(misses, ","), err)
	}
	return out, nil
}

// cacheGet reads a metrics entry from Redis. Any cache failure is a
// miss; the store falls through to Postgres.
func (s *Store) cacheGet(ctx context.Context, vendorID string) (models.VendorMetrics, bool) {
	if s.redis == nil {
		return models.VendorMetrics{}, false
	}
	raw, err := s.redis.Get(ctx, metricsKeyPrefix+vendorID)
	if err != nil {
		return models.VendorMetrics{}, false
	}
	var m models.VendorMetrics
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.VendorMetrics{}, false
	}
	return m, true
}

func (s *Store) cacheSet(ctx context.Context, vendorID string, m models.VendorMetrics) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, metricsKeyPrefix+vendorID, raw, metricsCacheTTL); err != nil {
		s.logger.Debug("metrics cache write failed", map[string]interface{}{
			"vendorId": vendorID,
			"error":    err.Error(),
		})
	}
}
