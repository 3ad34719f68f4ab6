package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // second call must not re-register

	if MessagesSent == nil || NameRepliesIgnored == nil || NickRetries == nil {
		t.Fatal("counters not initialized")
	}
	if PresentUsers == nil || AbsentUsers == nil || Participants == nil {
		t.Fatal("gauges not initialized")
	}
	if SessionDuration == nil {
		t.Fatal("session duration histogram not initialized")
	}
}

func TestCountSent(t *testing.T) {
	Init()
	before := testutil.ToFloat64(MessagesSent.WithLabelValues("private"))
	CountSent("private")
	CountSent("private")
	if got := testutil.ToFloat64(MessagesSent.WithLabelValues("private")) - before; got != 2 {
		t.Errorf("private messages delta = %v, want 2", got)
	}
}

func TestCountersIncrement(t *testing.T) {
	Init()
	ignored := testutil.ToFloat64(NameRepliesIgnored)
	retries := testutil.ToFloat64(NickRetries)
	IncNameRepliesIgnored()
	IncNickRetries()
	IncNickRetries()
	if got := testutil.ToFloat64(NameRepliesIgnored) - ignored; got != 1 {
		t.Errorf("name replies ignored delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(NickRetries) - retries; got != 2 {
		t.Errorf("nick retries delta = %v, want 2", got)
	}
}

func TestAttendanceGauges(t *testing.T) {
	Init()
	SetAttendance(2, 1)
	SetParticipants(3)
	if got := testutil.ToFloat64(PresentUsers); got != 2 {
		t.Errorf("present = %v, want 2", got)
	}
	if got := testutil.ToFloat64(AbsentUsers); got != 1 {
		t.Errorf("absent = %v, want 1", got)
	}
	if got := testutil.ToFloat64(Participants); got != 3 {
		t.Errorf("participants = %v, want 3", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("duration = %s, want >= 10ms", duration)
	}
	if n := testutil.CollectAndCount(testHistogram); n != 1 {
		t.Errorf("collected %d metrics, want 1", n)
	}
}

func TestTimeFuncNilObserver(t *testing.T) {
	ran := false
	TimeFunc(nil, func() { ran = true })
	if !ran {
		t.Error("fn not executed")
	}
}

func TestLoggerWithCorr(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "run-123")
	if got := GetCorrelation(ctx); got != "run-123" {
		t.Errorf("GetCorrelation = %q", got)
	}
	if GetCorrelation(context.Background()) != "" {
		t.Error("expected empty correlation on bare context")
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("nil logger")
	}
}

func TestPushDisabled(t *testing.T) {
	if err := Push(context.Background(), "", "#team"); err != nil {
		t.Errorf("Push with empty url = %v, want nil", err)
	}
}

func TestPushGatherer(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		body = string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "standup_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	if err := PushGatherer(context.Background(), srv.URL, "#team", reg); err != nil {
		t.Fatalf("PushGatherer: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(path, "/job/"+PushJob) || !strings.Contains(path, "/channel/team") {
		t.Errorf("unexpected push path %q", path)
	}
	if body == "" {
		t.Error("empty push body")
	}
}

func TestPushGathererError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	if err := PushGatherer(context.Background(), srv.URL, "#team", prometheus.NewRegistry()); err == nil {
		t.Fatal("expected error from failing gateway")
	}
}
