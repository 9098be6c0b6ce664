package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sweepcast/internal/config"
	"github.com/banshee-data/sweepcast/internal/db"
	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
	"github.com/banshee-data/sweepcast/internal/lidar/network"
	"github.com/banshee-data/sweepcast/internal/lidar/pipeline"
	"github.com/banshee-data/sweepcast/internal/lidar/protocol"
	"github.com/banshee-data/sweepcast/internal/testutil"
)

type discardSink struct{}

func (discardSink) SendAsync([]byte) bool { return true }

type fakeSender struct{}

func (fakeSender) Stats() network.SenderStats {
	return network.SenderStats{Queued: 10, Sent: 9, Dropped: 1}
}
func (fakeSender) Targets() []string { return []string{"127.0.0.1:5005"} }

type testEnv struct {
	store *config.Store
	pipe  *pipeline.Pipeline
	mux   *http.ServeMux
}

func newTestEnv(t *testing.T, database *db.DB) *testEnv {
	t.Helper()
	store := config.NewStore(config.Default())
	pipe := pipeline.New(pipeline.Config{Source: store, Encoder: protocol.JSONEncoder{}, Sink: discardSink{}})
	srv := NewServer(Options{
		Store:     store,
		Pipeline:  pipe,
		Sender:    fakeSender{},
		DB:        database,
		SessionID: "session-1",
		Format:    "json",
	})
	return &testEnv{store: store, pipe: pipe, mux: srv.ServeMux()}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	return testutil.Serve(LoggingMiddleware(e.mux), testutil.LocalRequest(method, target, strings.NewReader(body)))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "session-1", body["session_id"])

	assert.Equal(t, http.StatusMethodNotAllowed, env.do(http.MethodPost, "/health", "").Code)
}

func TestConfig_GetAndPost(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg config.RuntimeConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, config.Default(), cfg)

	rec = env.do(http.MethodPost, "/api/config", `{"MIN_HITS": 3, "NOT_A_KEY": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Applied []string             `json:"applied"`
		Config  config.RuntimeConfig `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"MIN_HITS"}, resp.Applied)
	assert.Equal(t, 3, resp.Config.MinHits)
	assert.Equal(t, 3, env.store.Snapshot().MinHits)

	rec = env.do(http.MethodPost, "/api/config", `{"MIN_HITS": 4, "MAX_POINTS": "many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 3, env.store.Snapshot().MinHits, "rejected update must not partially apply")

	rec = env.do(http.MethodPost, "/api/config", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/config", `{"NOT_A_KEY": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"applied":[]`)

	rec = env.do(http.MethodPost, "/api/config", strings.Repeat(" ", maxConfigBody+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Equal(t, http.StatusMethodNotAllowed, env.do(http.MethodDelete, "/api/config", "").Code)
}

func TestConfigHistory(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		env := newTestEnv(t, nil)
		assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/api/config/history", "").Code)
	})

	t.Run("with database", func(t *testing.T) {
		database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
		require.NoError(t, database.StartSession(db.Session{ID: "session-1", StartedAt: time.Now(), Format: "json"}))

		env := newTestEnv(t, database)
		env.store.Subscribe(database.ConfigRecorder("session-1"))

		require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/config", `{"SEND_HZ": 30}`).Code)
		require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/config", `{"SEND_HZ": 20}`).Code)

		rec := env.do(http.MethodGet, "/api/config/history?limit=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var updates []db.ConfigUpdate
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updates))
		require.Len(t, updates, 1)
		assert.JSONEq(t, `{"SEND_HZ": 20}`, string(updates[0].Payload))
		assert.True(t, strings.HasPrefix(updates[0].Source, "http:"))

		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/config/history?limit=0", "").Code)
	})
}

func TestStatsAndScatter(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/debug/scatter", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.pipe.Process(l1samples.RawSample{Angle: 0, Distance: 500}, now)
	env.pipe.Process(l1samples.RawSample{Angle: 0, Distance: 500}, now.Add(time.Millisecond))
	env.pipe.Flush(now.Add(2 * time.Millisecond))

	rec = env.do(http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, uint64(2), stats.Pipeline.Samples)
	assert.Equal(t, uint64(1), stats.Pipeline.Emitted)
	require.NotNil(t, stats.Sender)
	assert.Equal(t, uint64(1), stats.Sender.Dropped)
	require.NotNil(t, stats.LastBatch)
	assert.Equal(t, 1, stats.LastBatch.Count)

	rec = env.do(http.MethodGet, "/debug/scatter", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Last emitted batch")

	rec = env.do(http.MethodGet, "/debug/scatter?format=json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var points []l1samples.NormalizedPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	assert.Equal(t, []l1samples.NormalizedPoint{{X: 0.5, Y: 0.5}}, points)
}
