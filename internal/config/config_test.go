package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dataDir := t.TempDir()
	cleanup := setEnvs(t, map[string]string{
		"DATA_DIR":       dataDir,
		"OPENAI_API_KEY": "sk-test",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.StoreBackend != "sqlite" {
			t.Errorf("StoreBackend = %q, want sqlite", cfg.StoreBackend)
		}
		if cfg.TranscribeModel != "whisper-1" {
			t.Errorf("TranscribeModel = %q, want whisper-1", cfg.TranscribeModel)
		}
		if cfg.TranscribeLanguage != "en" {
			t.Errorf("TranscribeLanguage = %q, want en", cfg.TranscribeLanguage)
		}
		if cfg.TranscribeTimeout != 120*time.Second {
			t.Errorf("TranscribeTimeout = %v, want 2m", cfg.TranscribeTimeout)
		}
		if cfg.UseMock {
			t.Error("UseMock = true, want false")
		}
		if cfg.MQTT.ClientID != "voicememo" {
			t.Errorf("MQTT.ClientID = %q, want voicememo", cfg.MQTT.ClientID)
		}
		if cfg.MQTT.Enabled() || cfg.S3.Enabled() {
			t.Error("MQTT/S3 enabled without broker/bucket")
		}
	})

	t.Run("dirs_under_data_dir", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		tests := []struct {
			name, got, want string
		}{
			{"AudioDir", cfg.AudioDir, filepath.Join(dataDir, "audio")},
			{"CaptureDir", cfg.CaptureDir, filepath.Join(dataDir, "captures")},
			{"ExportDir", cfg.ExportDir, filepath.Join(dataDir, "exports")},
			{"LogFile", cfg.LogFile, filepath.Join(dataDir, "voicememo.log")},
			{"SQLitePath", cfg.SQLitePath(), filepath.Join(dataDir, "voicememo.sqlite")},
		}
		for _, tt := range tests {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		}
		if cfg.ImportDir != "" {
			t.Errorf("ImportDir = %q, want empty (watcher disabled)", cfg.ImportDir)
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		override := t.TempDir()
		cfg, err := Load(Overrides{
			EnvFile:      "nonexistent.env",
			HTTPAddr:     ":9090",
			LogLevel:     "debug",
			DataDir:      override,
			StoreBackend: "file",
			Mock:         true,
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.DataDir != override {
			t.Errorf("DataDir = %q, want %q", cfg.DataDir, override)
		}
		if cfg.AudioDir != filepath.Join(override, "audio") {
			t.Errorf("AudioDir = %q, want under override", cfg.AudioDir)
		}
		if cfg.StoreBackend != "file" {
			t.Errorf("StoreBackend = %q, want file", cfg.StoreBackend)
		}
		if !cfg.UseMock {
			t.Error("UseMock = false, want true")
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.OpenAIAPIKey != "sk-test" {
			t.Errorf("OpenAIAPIKey = %q, want sk-test", cfg.OpenAIAPIKey)
		}
	})

	t.Run("nested_prefixes", func(t *testing.T) {
		restore := setEnvs(t, map[string]string{
			"S3_BUCKET":       "memos",
			"MQTT_BROKER_URL": "tcp://localhost:1883",
		})
		defer restore()

		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !cfg.S3.Enabled() || cfg.S3.Bucket != "memos" {
			t.Errorf("S3 = %+v, want bucket memos", cfg.S3)
		}
		if cfg.S3.Region != "us-east-1" {
			t.Errorf("S3.Region = %q, want us-east-1", cfg.S3.Region)
		}
		if !cfg.MQTT.Enabled() {
			t.Error("MQTT not enabled with broker set")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"DATA_DIR": t.TempDir()})
	defer cleanup()
	os.Unsetenv("ENHANCE_MODEL")
	defer os.Unsetenv("ENHANCE_MODEL")

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ENHANCE_MODEL=gpt-4o-mini\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(Overrides{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EnhanceModel != "gpt-4o-mini" {
		t.Errorf("EnhanceModel = %q, want gpt-4o-mini", cfg.EnhanceModel)
	}
}

func TestLoadInvalidValue(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"IMPORT_WORKERS": "many"})
	defer cleanup()

	if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
		t.Error("expected error for non-numeric IMPORT_WORKERS")
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
