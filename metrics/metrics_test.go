package metrics

import (
	"sync"
	"testing"
)

// MockReporter records every reported metric for assertions.
type MockReporter struct {
	reportedRecords []Record
	mu              sync.Mutex
}

// NewMockReporter creates a new MockReporter.
func NewMockReporter() *MockReporter {
	return &MockReporter{reportedRecords: []Record{}}
}

// Report implements the Reporter interface.
func (mr *MockReporter) Report(r Record) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.reportedRecords = append(mr.reportedRecords, *r.Clone())
}

// GetReportedRecords returns a copy of all reported records.
func (mr *MockReporter) GetReportedRecords() []Record {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return append([]Record{}, mr.reportedRecords...)
}

// Reset drops all recorded records.
func (mr *MockReporter) Reset() {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.reportedRecords = mr.reportedRecords[:0]
}

func withMockReporter(t *testing.T) *MockReporter {
	t.Helper()
	mock := NewMockReporter()
	SetMetricsReporters([]Reporter{mock})
	t.Cleanup(func() {
		SetMetricsReporters(nil)
	})
	return mock
}

func TestCounter(t *testing.T) {
	mock := withMockReporter(t)
	c := getCounter("test_counter", "test_group")

	t.Run("Incr", func(t *testing.T) {
		c.Incr(10)
		records := mock.GetReportedRecords()
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}
		record := records[0]
		if record.Value() != 10 {
			t.Errorf("Expected value 10, got %v", record.Value())
		}
		if record.Metrics().Name() != "test_counter" {
			t.Errorf("Expected name 'test_counter', got '%s'", record.Metrics().Name())
		}
		if record.Metrics().Group() != "test_group" {
			t.Errorf("Expected group 'test_group', got '%s'", record.Metrics().Group())
		}
		if record.Metrics().Policy() != Policy_Sum {
			t.Errorf("Expected policy Policy_Sum, got %v", record.Metrics().Policy())
		}
	})

	t.Run("IncrWithDim", func(t *testing.T) {
		mock.Reset()
		c.IncrWithDim(5, Dimension{"direction": "read", "priority": "high"})
		records := mock.GetReportedRecords()
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}
		dim := records[0].Dimensions()
		if dim["direction"] != "read" {
			t.Errorf("Expected dimension direction 'read', got '%s'", dim["direction"])
		}
		if dim["priority"] != "high" {
			t.Errorf("Expected dimension priority 'high', got '%s'", dim["priority"])
		}
	})
}

func TestGauge(t *testing.T) {
	mock := withMockReporter(t)
	g := getGauge("test_gauge", "test_group")

	g.Update(42)
	records := mock.GetReportedRecords()
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Value() != 42 {
		t.Errorf("Expected value 42, got %v", records[0].Value())
	}
	if records[0].Metrics().Policy() != Policy_Set {
		t.Errorf("Expected policy Policy_Set, got %v", records[0].Metrics().Policy())
	}
}

func TestHistogram(t *testing.T) {
	mock := withMockReporter(t)
	h := getHistogram("test_hist", "test_group")

	h.Observe(1.5)
	h.ObserveWithDim(2.5, Dimension{"priority": "low"})
	records := mock.GetReportedRecords()
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Metrics().Policy() != Policy_Histogram {
		t.Errorf("Expected policy Policy_Histogram, got %v", records[0].Metrics().Policy())
	}
	if records[1].Dimensions()["priority"] != "low" {
		t.Errorf("Expected dimension priority 'low', got '%s'", records[1].Dimensions()["priority"])
	}
}

func TestFacadeFunctions(t *testing.T) {
	mock := withMockReporter(t)

	IncrCounterWithDimGroup(NameIOGrantedBytesTotal, GroupKVUtil, 1024, Dimension{DimDirection: "write"})
	UpdateGaugeWithDimGroup(NameIOEffectiveCeilingBytes, GroupKVUtil, 1<<20, Dimension{DimDirection: "write"})
	ObserveHistogramWithDimGroup(NameIOWaitDurationMS, GroupKVUtil, 12.5, Dimension{DimPriority: "medium"})

	records := mock.GetReportedRecords()
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[0].Metrics().Name() != NameIOGrantedBytesTotal {
		t.Errorf("unexpected counter name %s", records[0].Metrics().Name())
	}
	if records[1].Value() != 1<<20 {
		t.Errorf("unexpected gauge value %v", records[1].Value())
	}
	if records[2].Value() != 12.5 {
		t.Errorf("unexpected histogram value %v", records[2].Value())
	}
}

func TestGetCounterReturnsSameInstance(t *testing.T) {
	a := getCounter("same_counter", "g")
	b := getCounter("same_counter", "g")
	if a != b {
		t.Error("expected the same counter instance for one name")
	}
}
