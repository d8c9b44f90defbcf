package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string `help:"Config file path"`

	Port         int           `toml:"server.port" env:"PORT"`
	FFmpegPath   string        `toml:"engine.ffmpeg_path" env:"FFMPEG_PATH"`
	PollInterval time.Duration `toml:"engine.poll_interval" env:"POLL_INTERVAL"`
	KillTimeout  time.Duration `toml:"engine.kill_timeout" env:"KILL_TIMEOUT"`
	AuthEnabled  bool          `toml:"auth.enabled" env:"AUTH_ENABLED"`
	Modules      []string      `toml:"logging.modules_list" env:"MODULES"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeFile(t, `
[server]
port = 9090

[engine]
ffmpeg_path = "/usr/bin/ffmpeg"
poll_interval = "250ms"
kill_timeout = 2000

[auth]
enabled = true

[logging]
modules_list = ["process", "api"]
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := testOptions{
		Config:       path,
		Port:         9090,
		FFmpegPath:   "/usr/bin/ffmpeg",
		PollInterval: 250 * time.Millisecond,
		KillTimeout:  2 * time.Second,
		AuthEnabled:  true,
		Modules:      []string{"process", "api"},
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("got %+v, want %+v", *opts, want)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MEDIAEXEC_PORT", "8081")
	t.Setenv("MEDIAEXEC_POLL_INTERVAL", "50ms")
	t.Setenv("MEDIAEXEC_AUTH_ENABLED", "true")
	t.Setenv("MEDIAEXEC_MODULES", " a , b ")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Port != 8081 {
		t.Errorf("Port = %d, want 8081", opts.Port)
	}
	if opts.PollInterval != 50*time.Millisecond {
		t.Errorf("PollInterval = %v, want 50ms", opts.PollInterval)
	}
	if !opts.AuthEnabled {
		t.Error("AuthEnabled = false, want true")
	}
	if !reflect.DeepEqual(opts.Modules, []string{"a", "b"}) {
		t.Errorf("Modules = %v", opts.Modules)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	path := writeFile(t, `
[server]
port = 9090

[engine]
ffmpeg_path = "/opt/ffmpeg"
`)
	t.Setenv("MEDIAEXEC_PORT", "7000")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Port != 7000 {
		t.Errorf("Port = %d, want env value 7000", opts.Port)
	}
	if opts.FFmpegPath != "/opt/ffmpeg" {
		t.Errorf("FFmpegPath = %q, want TOML value", opts.FFmpegPath)
	}
}

func TestLoadConfigChangedFlagWins(t *testing.T) {
	path := writeFile(t, "[server]\nport = 9090\n")
	t.Setenv("MEDIAEXEC_PORT", "7000")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&opts.Port, "port", 8080, "")
	if err := cmd.Flags().Parse([]string{"--port", "1234"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Port != 1234 {
		t.Errorf("Port = %d, want flag value 1234", opts.Port)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
		env  string
	}{
		{name: "invalid toml", toml: "[server\nport = "},
		{name: "wrong type", toml: "[server]\nport = \"eighty\"\n"},
		{name: "bad duration", toml: "[engine]\npoll_interval = \"soon\"\n"},
		{name: "bad env int", env: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &testOptions{}
			if tt.toml != "" {
				opts.Config = writeFile(t, tt.toml)
			}
			if tt.env != "" {
				t.Setenv("MEDIAEXEC_PORT", tt.env)
			}
			if err := LoadConfig(opts, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Port: 8080}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if opts.Port != 8080 {
		t.Errorf("Port = %d, default should be kept", opts.Port)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":         "port",
		"PollInterval": "poll-interval",
		"FFmpegPath":   "f-fmpeg-path",
		"KillTimeout":  "kill-timeout",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"engine": map[string]any{
			"limits": map[string]any{"kill": "5s"},
			"name":   "ffmpeg",
		},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"engine.name", "ffmpeg"},
		{"engine.limits.kill", "5s"},
		{"missing", nil},
		{"engine.missing", nil},
		{"root.child", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeFile(t, `
[logging]
level = "warn"
format = "json"
process = "debug"

[logging.modules]
api = "error"
`)

	cfg, err := LoadLoggingConfig(path)
	if err != nil {
		t.Fatalf("LoadLoggingConfig failed: %v", err)
	}
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("got level=%q format=%q", cfg.Level, cfg.Format)
	}
	want := map[string]string{"process": "debug", "api": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "none.toml")} {
		cfg, err := LoadLoggingConfig(path)
		if err != nil {
			t.Fatalf("LoadLoggingConfig(%q) failed: %v", path, err)
		}
		if cfg.Level != "info" || cfg.Format != "text" || len(cfg.Modules) != 0 {
			t.Errorf("LoadLoggingConfig(%q) = %+v, want defaults", path, cfg)
		}
	}
}
