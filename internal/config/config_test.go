package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	t.Setenv("KITH_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Owner.PersonID != "" {
		t.Errorf("owner = %q, want empty", cfg.Owner.PersonID)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("KITH_CONFIG_DIR", t.TempDir())

	cfg := &Config{
		Owner: OwnerConfig{PersonID: "p-me"},
		Discovery: DiscoveryConfig{
			LookbackDays:    365,
			MinSharedEvents: 5,
			DefaultTypes:    map[string]string{"calendar": "friend"},
		},
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Owner.PersonID != "p-me" {
		t.Errorf("owner = %q", loaded.Owner.PersonID)
	}
	if loaded.Discovery.LookbackDays != 365 || loaded.Discovery.MinSharedEvents != 5 {
		t.Errorf("discovery = %+v", loaded.Discovery)
	}
	if loaded.Discovery.DefaultTypes["calendar"] != "friend" {
		t.Errorf("default types = %v", loaded.Discovery.DefaultTypes)
	}
}

func TestWithDefaults(t *testing.T) {
	d := DiscoveryConfig{}.WithDefaults()
	if d.LookbackDays != 3650 {
		t.Errorf("lookback = %d", d.LookbackDays)
	}
	if d.MinSharedEvents != 2 || d.MinSharedThreads != 1 || d.MinCoMentions != 2 {
		t.Errorf("mins = %+v", d)
	}
	if d.MinSharedGroups != 1 || d.MinSharedPhotos != 3 || d.MinDirectMessages != 1 || d.MinPhoneCalls != 1 {
		t.Errorf("mins = %+v", d)
	}

	// explicit values survive
	d = DiscoveryConfig{MinSharedEvents: 7}.WithDefaults()
	if d.MinSharedEvents != 7 {
		t.Errorf("events min = %d, want 7", d.MinSharedEvents)
	}
}

func TestDefaultType(t *testing.T) {
	d := DiscoveryConfig{DefaultTypes: map[string]string{"calendar": "friend"}}
	if got := d.DefaultType("calendar", "coworker"); got != "friend" {
		t.Errorf("got %q", got)
	}
	if got := d.DefaultType("email", "inferred"); got != "inferred" {
		t.Errorf("got %q", got)
	}
}

func TestConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KITH_CONFIG_DIR", dir)

	got, err := GetConfigDir()
	if err != nil {
		t.Fatalf("config dir: %v", err)
	}
	if got != dir {
		t.Errorf("dir = %q, want override", got)
	}
}

func TestDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KITH_DATA_DIR", dir)

	got, err := GetDataDir()
	if err != nil {
		t.Fatalf("data dir: %v", err)
	}
	if got != dir {
		t.Errorf("dir = %q, want override", got)
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	base := t.TempDir()
	nested := filepath.Join(base, "deep", "kith")
	t.Setenv("KITH_CONFIG_DIR", nested)

	cfg := &Config{Owner: OwnerConfig{PersonID: "p"}}
	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nested, "config.yaml")); err != nil {
		t.Errorf("config file missing: %v", err)
	}
}
