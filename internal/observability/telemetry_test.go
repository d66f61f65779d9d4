package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/config"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
)

func TestStartTelemetry_AllDisabled(t *testing.T) {
	t.Parallel()

	telemetry, err := StartTelemetry(config.Config{ServiceName: "bolao-alviverde-api", AppEnv: config.EnvDev}, logging.NewNop())
	if err != nil {
		t.Fatalf("start telemetry: %v", err)
	}
	if telemetry.traceShutdown != nil || telemetry.profiler != nil || telemetry.pprofServer != nil {
		t.Fatalf("nothing should be running: %+v", telemetry)
	}
	if err := telemetry.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// Shutdown twice is harmless.
	if err := telemetry.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestStartTelemetry_UptraceWithoutDSNStaysOff(t *testing.T) {
	t.Parallel()

	telemetry, err := StartTelemetry(config.Config{UptraceEnabled: true, ServiceName: "bolao-alviverde-api"}, nil)
	if err != nil {
		t.Fatalf("start telemetry: %v", err)
	}
	if telemetry.traceShutdown != nil {
		t.Fatalf("tracing export needs a DSN")
	}
}

func TestTelemetry_NilShutdown(t *testing.T) {
	t.Parallel()

	var telemetry *Telemetry
	if err := telemetry.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil telemetry shutdown: %v", err)
	}
}

func TestProfileTags(t *testing.T) {
	t.Parallel()

	tags := profileTags(config.Config{
		AppEnv:             config.EnvProd,
		ServiceName:        "bolao-alviverde-api",
		StorageDriver:      config.StoragePostgres,
		TaskDispatchDriver: config.DispatchQStash,
		RescorePolicy:      match.PolicyOnCorrection,
	})
	if tags["rescore_policy"] != "on-correction" || tags["storage"] != config.StoragePostgres || tags["env"] != config.EnvProd {
		t.Fatalf("unexpected tags: %v", tags)
	}
}

func TestPprofServerRoutes(t *testing.T) {
	t.Parallel()

	srv := newPprofServer("127.0.0.1:0")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pprof index, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/debug/pprof/cmdline", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for DELETE, got %d", rec.Code)
	}
}
