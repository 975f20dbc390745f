package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nasa-jpl/irpcd/config"
)

func TestLoadServerDefaultsWithoutFile(t *testing.T) {
	got, err := config.LoadServer(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("load server: %v", err)
	}
	if got != config.DefaultServer {
		t.Fatalf("got %+v, want %+v", got, config.DefaultServer)
	}
}

func TestLoadServerOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irpcd.yml")
	if err := os.WriteFile(path, []byte("addr: \":9999\"\nverbose: true\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	got, err := config.LoadServer(path)
	if err != nil {
		t.Fatalf("load server: %v", err)
	}
	if got.Addr != ":9999" || !got.Verbose {
		t.Fatalf("got %+v, want addr=:9999 verbose=true", got)
	}
	if got.StrictHandleRouting != config.DefaultServer.StrictHandleRouting {
		t.Fatalf("unset field should keep default, got %v", got.StrictHandleRouting)
	}
}

func TestWriteDefaultServerRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irpcd.yml")
	if err := config.WriteDefaultServer(path); err != nil {
		t.Fatalf("write default: %v", err)
	}
	got, err := config.LoadServer(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if got != config.DefaultServer {
		t.Fatalf("got %+v, want %+v", got, config.DefaultServer)
	}
}
