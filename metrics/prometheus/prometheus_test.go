package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(reg)

	c.RecordCacheOperation("get", "memory", "hit", 5*time.Millisecond)
	c.RecordCacheSize("memory", 1024)
	c.RecordCacheEntries("memory", 3)
	c.RecordHTTPRequest("GET", "HIT", 200, 10*time.Millisecond)
	c.RecordHTTPResponseSize("HIT", 512)
	c.RecordStaleResponse("network")

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(metricFamilies) == 0 {
		t.Fatal("expected registered metrics, got none")
	}
}
