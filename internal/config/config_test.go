package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"PORT", "STORE_DRIVER", "BROADCAST_SCOPE", "REALTIME_SEND_BUFFER", "DISPATCH_TIMEOUT_SECONDS", "RECEIPT_SINK"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Fatalf("expected memory driver, got %q", cfg.StoreDriver)
	}
	if cfg.BroadcastScope != ScopeAll {
		t.Fatalf("expected broadcast scope all, got %q", cfg.BroadcastScope)
	}
	if cfg.SendBuffer != 64 {
		t.Fatalf("expected send buffer 64, got %d", cfg.SendBuffer)
	}
	if cfg.DispatchTimeout != 5*time.Second {
		t.Fatalf("expected 5s dispatch timeout, got %s", cfg.DispatchTimeout)
	}
	if cfg.ReceiptSink != "file" {
		t.Fatalf("expected file receipt sink, got %q", cfg.ReceiptSink)
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("BROADCAST_SCOPE", "office")
	t.Setenv("REALTIME_SEND_BUFFER", "not-a-number")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("DISPATCH_TIMEOUT_SECONDS", "0")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.StoreDriver)
	}
	if cfg.BroadcastScope != ScopeOffice {
		t.Fatalf("expected office scope, got %q", cfg.BroadcastScope)
	}
	if cfg.SendBuffer != 64 {
		t.Fatalf("expected fallback send buffer, got %d", cfg.SendBuffer)
	}
	if cfg.RunMigrations {
		t.Fatalf("expected migrations disabled")
	}
	if cfg.DispatchTimeout != 0 {
		t.Fatalf("expected zero timeout, got %s", cfg.DispatchTimeout)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
