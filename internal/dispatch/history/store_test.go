// internal/dispatch/history/store_test.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"vendor-dispatch/internal/common/database"
	"vendor-dispatch/internal/common/errors"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, withRedis bool) (*Store, sqlmock.Sqlmock, *miniredis.Miniredis) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pg := &database.PostgresClient{DB: db}

	var redisClient *database.RedisClient
	var mr *miniredis.Miniredis
	if withRedis {
		mr = miniredis.RunT(t)
		redisClient = &database.RedisClient{
			Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		}
	}

	return NewStore(pg, redisClient, logger.NewTestLogger(t)), mock, mr
}

func metricsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"completion_rate", "rework_rate", "avg_response_time_hours",
		"avg_satisfaction", "sample_size",
	})
}

func TestStore_GetMetrics(t *testing.T) {
	store, mock, _ := newTestStore(t, false)

	mock.ExpectQuery("SELECT completion_rate").
		WithArgs("v1").
		WillReturnRows(metricsRows().AddRow(0.92, 0.04, 2.5, 4.6, 120))

	m, found, err := store.GetMetrics(context.Background(), "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.VendorMetrics{
		CompletionRate:       0.92,
		ReworkRate:           0.04,
		AvgResponseTimeHours: 2.5,
		AvgSatisfaction:      4.6,
		SampleSize:           120,
	}, m)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetMetrics_NoHistory(t *testing.T) {
	store, mock, _ := newTestStore(t, false)

	mock.ExpectQuery("SELECT completion_rate").
		WithArgs("new-vendor").
		WillReturnRows(metricsRows())

	m, found, err := store.GetMetrics(context.Background(), "new-vendor")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, models.VendorMetrics{}, m)
}

func TestStore_GetMetrics_QueryError(t *testing.T) {
	store, mock, _ := newTestStore(t, false)

	mock.ExpectQuery("SELECT completion_rate").
		WithArgs("v1").
		WillReturnError(fmt.Errorf("connection reset"))

	_, found, err := store.GetMetrics(context.Background(), "v1")
	require.Error(t, err)
	assert.False(t, found)

	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeMetricsLookupFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "v1")
	assert.Contains(t, stdErr.Details, "connection reset")
}

func TestStore_GetMetrics_ReadThroughCache(t *testing.T) {
	store, mock, mr := newTestStore(t, true)

	mock.ExpectQuery("SELECT completion_rate").
		WithArgs("v1").
		WillReturnRows(metricsRows().AddRow(0.88, 0.05, 3.0, 4.2, 60))

	// First lookup hits Postgres and populates the cache.
	m, found, err := store.GetMetrics(context.Background(), "v1")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, mr.Exists("vm:v1"))

	// Second lookup is served from Redis; no further query expected.
	again, found, err := store.GetMetrics(context.Background(), "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, m, again)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetMetrics_CorruptCacheFallsThrough(t *testing.T) {
	store, mock, mr := newTestStore(t, true)

	require.NoError(t, mr.Set("vm:v1", "{not json"))
	mock.ExpectQuery("SELECT completion_rate").
		WithArgs("v1").
		WillReturnRows(metricsRows().AddRow(0.9, 0.05, 3.0, 4.0, 50))

	_, found, err := store.GetMetrics(context.Background(), "v1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetMetricsBatch(t *testing.T) {
	store, mock, mr := newTestStore(t, true)

	// v1 pre-cached; v2 in Postgres; v3 has no history anywhere.
	cached, _ := json.Marshal(models.VendorMetrics{CompletionRate: 0.95, SampleSize: 200})
	require.NoError(t, mr.Set("vm:v1", string(cached)))

	mock.ExpectQuery("SELECT vendor_id, completion_rate").
		WillReturnRows(sqlmock.NewRows([]string{
			"vendor_id", "completion_rate", "rework_rate",
			"avg_response_time_hours", "avg_satisfaction", "sample_size",
		}).AddRow("v2", 0.8, 0.1, 5.0, 3.9, 30))

	out, err := store.GetMetricsBatch(context.Background(), []string{"v1", "v2", "v3"})
	require.NoError(t, err)

	assert.Len(t, out, 2)
	assert.InDelta(t, 0.95, out["v1"].CompletionRate, models.FloatTolerance)
	assert.InDelta(t, 0.8, out["v2"].CompletionRate, models.FloatTolerance)
	_, hasV3 := out["v3"]
	assert.False(t, hasV3)

	// v2 was cached for the next pass.
	assert.True(t, mr.Exists("vm:v2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetMetricsBatch_Empty(t *testing.T) {
	store, mock, _ := newTestStore(t, false)

	out, err := store.GetMetricsBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
