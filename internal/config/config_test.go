package config

import (
	"testing"
	"time"

	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/scoring"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StorageDriver != StorageMemory {
		t.Fatalf("expected memory storage by default, got %q", cfg.StorageDriver)
	}
	if cfg.TaskDispatchDriver != DispatchEventBus {
		t.Fatalf("expected eventbus dispatch by default, got %q", cfg.TaskDispatchDriver)
	}
	if cfg.PointsTable != scoring.DefaultPointsTable() {
		t.Fatalf("unexpected default points table: %+v", cfg.PointsTable)
	}
	if cfg.RescorePolicy != match.PolicyFinalizeOnly {
		t.Fatalf("expected finalize-only policy, got %q", cfg.RescorePolicy)
	}
	if cfg.GuessLockWindow != time.Hour {
		t.Fatalf("expected 1h lock window, got %s", cfg.GuessLockWindow)
	}
	if cfg.MonthLocation == nil || cfg.MonthLocation.String() != "UTC" {
		t.Fatalf("expected UTC month location, got %v", cfg.MonthLocation)
	}
	if cfg.LogLevel != logging.LevelInfo {
		t.Fatalf("expected info log level, got %s", cfg.LogLevel)
	}
}

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_ScoringOverrides(t *testing.T) {
	t.Setenv("APP_ENV", EnvStage)
	t.Setenv("SCORING_POINTS_TABLE", "10,7,5,3,1")
	t.Setenv("SCORING_RESCORE_POLICY", "on-correction")
	t.Setenv("SCORING_WORKERS", "2")
	t.Setenv("SCORING_COMMIT_MAX_ATTEMPTS", "5")
	t.Setenv("SCORING_MONTH_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("APP_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := scoring.PointsTable{Exact: 10, WinnerAndMargin: 7, WinnerAndOneScore: 5, WinnerOnly: 3, OneScore: 1}
	if cfg.PointsTable != want {
		t.Fatalf("unexpected points table: %+v", cfg.PointsTable)
	}
	if cfg.RescorePolicy != match.PolicyOnCorrection {
		t.Fatalf("expected on-correction policy, got %q", cfg.RescorePolicy)
	}
	if cfg.ScoringWorkers != 2 || cfg.CommitMaxAttempts != 5 {
		t.Fatalf("unexpected worker settings: workers=%d attempts=%d", cfg.ScoringWorkers, cfg.CommitMaxAttempts)
	}
	if cfg.MonthLocation.String() != "America/Sao_Paulo" {
		t.Fatalf("unexpected month location: %s", cfg.MonthLocation)
	}
	if cfg.LogLevel != logging.LevelDebug {
		t.Fatalf("expected debug log level, got %s", cfg.LogLevel)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "points table", key: "SCORING_POINTS_TABLE", value: "5,10,3,2,1"},
		{name: "rescore policy", key: "SCORING_RESCORE_POLICY", value: "always"},
		{name: "workers", key: "SCORING_WORKERS", value: "0"},
		{name: "storage driver", key: "STORAGE_DRIVER", value: "mongo"},
		{name: "dispatch driver", key: "TASK_DISPATCH_DRIVER", value: "kafka"},
		{name: "lock window", key: "GUESS_LOCK_WINDOW", value: "-1h"},
		{name: "cache ttl", key: "CACHE_TTL", value: "soon"},
		{name: "metrics flag", key: "METRICS_ENABLED", value: "maybe"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestLoad_QStashRequiresCredentials(t *testing.T) {
	t.Setenv("APP_ENV", EnvProd)
	t.Setenv("TASK_DISPATCH_DRIVER", DispatchQStash)
	t.Setenv("QSTASH_TOKEN", "token")
	t.Setenv("QSTASH_TARGET_BASE_URL", "https://bolao.example.com")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error without INTERNAL_JOB_TOKEN")
	}

	t.Setenv("INTERNAL_JOB_TOKEN", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TaskDispatchDriver != DispatchQStash || cfg.InternalJobToken != "secret" {
		t.Fatalf("unexpected qstash config: %+v", cfg)
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestParseUptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Parallel()

	got := parseUptraceDSNFromOTLPHeaders(`x-other=1, uptrace-dsn="https://token@api.uptrace.dev?grpc=4317"`)
	if got != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected dsn: %q", got)
	}
	if parseUptraceDSNFromOTLPHeaders("") != "" {
		t.Fatalf("expected empty dsn for empty headers")
	}
}
