package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCounters(t *testing.T) {
	m := New()

	m.EdgeCreated()
	m.EdgeCreated()
	m.EdgesDeleted(3)
	m.Review(true)
	m.Review(false)
	m.Review(false)
	m.SessionOpened("explorer")
	m.SessionOpened("explorer")
	m.SessionClosed("explorer")

	body := scrape(t, m)
	assert.Contains(t, body, "repertoire_edges_created_total 2")
	assert.Contains(t, body, "repertoire_edges_deleted_total 3")
	assert.Contains(t, body, `repertoire_reviews_total{result="correct"} 1`)
	assert.Contains(t, body, `repertoire_reviews_total{result="wrong"} 2`)
	assert.Contains(t, body, `repertoire_sessions_active{kind="explorer"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PositionCreated()
		m.EdgeCreated()
		m.EdgeMerged()
		m.EdgesDeleted(1)
		m.PositionsDeleted(1)
		m.CascadeVisited(1)
		m.Review(true)
		m.SessionOpened("training")
		m.SessionClosed("training")
	})
	assert.NotNil(t, m.Handler())
	assert.Nil(t, m.Registry())
}
