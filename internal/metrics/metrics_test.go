package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCrawlSuccess(2 * time.Second)
	c.RecordCrawlSuccess(time.Second)
	c.RecordCrawlFailure(time.Second)
	c.RecordSnapshotStored()
	c.RecordPriceChange()
	c.RecordNotificationFailed()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				got[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	want := map[string]float64{
		"cruisewatch_crawl_success_total":        2,
		"cruisewatch_crawl_failure_total":        1,
		"cruisewatch_crawl_duration_seconds":     3,
		"cruisewatch_snapshots_stored_total":     1,
		"cruisewatch_price_changes_total":        1,
		"cruisewatch_notifications_sent_total":   0,
		"cruisewatch_notifications_failed_total": 1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %v, want %v", name, got[name], v)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSnapshotStored()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cruisewatch_snapshots_stored_total 1") {
		t.Error("response should contain cruisewatch_snapshots_stored_total")
	}
}

func TestNopIsSafe(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordCrawlSuccess(time.Second)
	r.RecordNotificationSent()
}
