package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NCA.Channels != 16 || cfg.NCA.Hidden != 64 {
		t.Errorf("nca dims = %d/%d, want 16/64", cfg.NCA.Channels, cfg.NCA.Hidden)
	}
	if cfg.Derived.Interval != 10*time.Second {
		t.Errorf("interval = %v, want 10s", cfg.Derived.Interval)
	}
	if cfg.Derived.Addr != "127.0.0.1:8765" {
		t.Errorf("addr = %q", cfg.Derived.Addr)
	}
	if cfg.Derived.PreviewCount != 20000 {
		t.Errorf("preview count = %d, want 20000", cfg.Derived.PreviewCount)
	}
	if len(cfg.Cycle.Shapes) == 0 {
		t.Error("default cycle is empty")
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tofu.yaml")
	body := "particles:\n  count: 500\ncycle:\n  shapes: [ring]\n  interval_sec: 0.5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Particles.Count != 500 {
		t.Errorf("count = %d, want 500", cfg.Particles.Count)
	}
	// preview_count from defaults exceeds count, so it is capped.
	if cfg.Derived.PreviewCount != 500 {
		t.Errorf("preview count = %d, want 500", cfg.Derived.PreviewCount)
	}
	if len(cfg.Cycle.Shapes) != 1 || cfg.Cycle.Shapes[0] != "ring" {
		t.Errorf("shapes = %v, want [ring]", cfg.Cycle.Shapes)
	}
	if cfg.Derived.Interval != 500*time.Millisecond {
		t.Errorf("interval = %v", cfg.Derived.Interval)
	}
	// Untouched sections keep their defaults.
	if cfg.Transport.Representatives != 1024 {
		t.Errorf("representatives = %d, want default 1024", cfg.Transport.Representatives)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero particles", "particles:\n  count: 0\n", "particles.count"},
		{"fire rate", "nca:\n  fire_rate: 1.5\n", "fire_rate"},
		{"empty cycle", "cycle:\n  shapes: []\n", "cycle.shapes"},
		{"negative jitter", "transport:\n  jitter: -1\n", "jitter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load written file: %v", err)
	}
	if again.Transport.Jitter != cfg.Transport.Jitter || again.Cycle.IntervalSec != cfg.Cycle.IntervalSec {
		t.Error("written config does not load back to the same values")
	}
}

func TestCfgBeforeInitPanics(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("Cfg did not panic before Init")
		}
	}()
	Cfg()
}

func TestMustInit(t *testing.T) {
	saved := global
	defer func() { global = saved }()

	MustInit("")
	if Cfg().Particles.Count <= 0 {
		t.Errorf("particle count = %d", Cfg().Particles.Count)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustInit did not panic on a missing file")
		}
	}()
	MustInit(filepath.Join(t.TempDir(), "missing.yaml"))
}
