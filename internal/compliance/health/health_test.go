package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stubFreezes struct {
	total   int64
	pending int
}

func (s stubFreezes) TotalFrozen() int64 { return s.total }
func (s stubFreezes) PendingCount() int  { return s.pending }

type stubWindow int

func (w stubWindow) Len() int { return int(w) }

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(stubFreezes{total: 10}, stubWindow(42))
	monitor.Register("storage", CheckerFunc(ok), true)

	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if report.ExposureWindowEdges != 42 {
		t.Errorf("expected 42 window edges, got %d", report.ExposureWindowEdges)
	}
}

func TestMonitor_Degraded(t *testing.T) {
	monitor := NewMonitor(stubFreezes{}, nil)
	monitor.Register("storage", CheckerFunc(ok), true)
	monitor.Register("cache", CheckerFunc(down), false)

	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Components["cache"].Error == "" {
		t.Error("expected cache error to be reported")
	}
}

func TestMonitor_PendingRedistributionDegrades(t *testing.T) {
	monitor := NewMonitor(stubFreezes{total: 100, pending: 1}, nil)

	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.PendingRedistributions != 1 {
		t.Errorf("expected 1 pending, got %d", report.PendingRedistributions)
	}
}

func TestMonitor_Critical(t *testing.T) {
	monitor := NewMonitor(nil, nil)
	monitor.Register("cache", CheckerFunc(down), false)
	monitor.Register("storage", CheckerFunc(down), true)

	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
}

func TestMonitor_ReusesRecentReport(t *testing.T) {
	calls := 0
	monitor := NewMonitor(nil, nil)
	monitor.Register("storage", CheckerFunc(func(context.Context) error {
		calls++
		return nil
	}), true)

	monitor.CheckHealth(context.Background())
	monitor.CheckHealth(context.Background())

	if calls != 1 {
		t.Errorf("expected 1 check within the interval, got %d", calls)
	}
}

func TestHandleHealth(t *testing.T) {
	monitor := NewMonitor(nil, nil)
	monitor.Register("storage", CheckerFunc(down), true)

	rec := httptest.NewRecorder()
	monitor.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != string(StatusCritical) {
		t.Errorf("expected critical, got %s", body["status"])
	}
}

func TestHandleDetailed(t *testing.T) {
	monitor := NewMonitor(stubFreezes{total: 7}, nil)

	rec := httptest.NewRecorder()
	monitor.HandleDetailed(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if report.TotalFrozen != 7 {
		t.Errorf("expected total frozen 7, got %d", report.TotalFrozen)
	}
}

func TestGRPCServer_Sync(t *testing.T) {
	monitor := NewMonitor(nil, nil)
	monitor.SetInterval(0)
	failing := false
	monitor.Register("storage", CheckerFunc(func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}), true)

	s := NewGRPCServer(monitor, 0)
	ctx := context.Background()

	s.Sync(ctx)
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %s", resp.Status)
	}

	failing = true
	s.Sync(ctx)
	resp, err = s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING, got %s", resp.Status)
	}
}
