package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("PORT", "")
		t.Setenv("RESERVATION_TTL", "")
		t.Setenv("KAFKA_BROKERS", "")

		cfg := Load("orders", "8081")

		if cfg.Port != "8081" {
			t.Errorf("expected default port 8081, got %s", cfg.Port)
		}
		if cfg.ReservationTTL != 15*time.Minute {
			t.Errorf("expected 15m ttl, got %s", cfg.ReservationTTL)
		}
		if cfg.KafkaBrokers != nil {
			t.Errorf("expected no brokers, got %v", cfg.KafkaBrokers)
		}
		if cfg.ServiceName != "orders" {
			t.Errorf("unexpected service name %s", cfg.ServiceName)
		}
	})

	t.Run("reads environment", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("RESERVATION_TTL", "5m")
		t.Setenv("SWEEP_INTERVAL", "not-a-duration")
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
		t.Setenv("DB_MAX_OPEN_CONNS", "7")

		cfg := Load("inventory", "8082")

		if cfg.Port != "9000" {
			t.Errorf("expected port 9000, got %s", cfg.Port)
		}
		if cfg.ReservationTTL != 5*time.Minute {
			t.Errorf("expected 5m ttl, got %s", cfg.ReservationTTL)
		}
		if cfg.SweepInterval != time.Minute {
			t.Errorf("expected invalid interval to fall back to 1m, got %s", cfg.SweepInterval)
		}
		if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
			t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
		}
		if cfg.MaxOpenConns != 7 {
			t.Errorf("expected 7 open conns, got %d", cfg.MaxOpenConns)
		}
	})
}

func TestRequire(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("EMAIL_SERVICE_URL", "http://email:8084")

	cfg := Load("worker", "")
	err := cfg.Require("POSTGRES_URL", "EMAIL_SERVICE_URL")
	if err == nil {
		t.Fatal("expected missing POSTGRES_URL to be reported")
	}
	if !strings.Contains(err.Error(), "POSTGRES_URL") || strings.Contains(err.Error(), "EMAIL_SERVICE_URL") {
		t.Errorf("unexpected error: %v", err)
	}

	t.Setenv("POSTGRES_URL", "postgres://localhost/partsmarket")
	if err := Load("worker", "").Require("POSTGRES_URL"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
