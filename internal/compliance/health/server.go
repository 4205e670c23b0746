package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported on the gRPC health service.
const ServiceName = "purity.Enforcer"

// HandleHealth writes the aggregated status; critical maps to 503.
func (m *Monitor) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report := m.CheckHealth(r.Context())

	response := map[string]string{"status": string(report.SystemStatus)}
	w.Header().Set("Content-Type", "application/json")

	if report.SystemStatus == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

// HandleDetailed writes the full report.
func (m *Monitor) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	report := m.CheckHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

// GRPCServer serves grpc.health.v1 and keeps it in sync with the monitor.
type GRPCServer struct {
	monitor  *Monitor
	health   *grpchealth.Server
	server   *grpc.Server
	port     int
	interval time.Duration
}

// NewGRPCServer creates a gRPC health server on port.
func NewGRPCServer(monitor *Monitor, port int) *GRPCServer {
	s := &GRPCServer{
		monitor:  monitor,
		health:   grpchealth.NewServer(),
		server:   grpc.NewServer(),
		port:     port,
		interval: 15 * time.Second,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	return s
}

// Start serves until Stop is called. The status watcher stops with ctx.
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on %d: %w", s.port, err)
	}
	go s.watch(ctx)
	slog.Info("gRPC health server listening", "port", s.port)
	return s.server.Serve(lis)
}

// Stop drains the server.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

// Sync pushes the current report into the gRPC health service.
func (s *GRPCServer) Sync(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.monitor.CheckHealth(ctx).SystemStatus == StatusCritical {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *GRPCServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sync(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}
