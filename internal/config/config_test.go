package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/basetemp/internal/errors"
	"github.com/Iron-Ham/basetemp/internal/tmpfactory"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.BaseTemp.Root != tmpfactory.DefaultRoot() {
		t.Errorf("BaseTemp.Root = %q, want %q", cfg.BaseTemp.Root, tmpfactory.DefaultRoot())
	}
	if cfg.BaseTemp.Given != "" {
		t.Errorf("BaseTemp.Given = %q, want empty", cfg.BaseTemp.Given)
	}
	if cfg.BaseTemp.Prefix != "run-" {
		t.Errorf("BaseTemp.Prefix = %q, want %q", cfg.BaseTemp.Prefix, "run-")
	}
	if cfg.BaseTemp.Keep != 3 {
		t.Errorf("BaseTemp.Keep = %d, want 3", cfg.BaseTemp.Keep)
	}
	if cfg.BaseTemp.LockTimeout != "72h" {
		t.Errorf("BaseTemp.LockTimeout = %q, want %q", cfg.BaseTemp.LockTimeout, "72h")
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.Logging.File != "" {
		t.Errorf("Logging.File = %q, want empty", cfg.Logging.File)
	}
	if cfg.Metrics.Textfile != "" {
		t.Errorf("Metrics.Textfile = %q, want empty", cfg.Metrics.Textfile)
	}
}

func TestDefault_RootIsPerUser(t *testing.T) {
	root := Default().BaseTemp.Root
	if !strings.HasPrefix(filepath.Base(root), "basetemp-of-") {
		t.Errorf("default root %q should be named basetemp-of-<user>", root)
	}
}

func TestBaseTempConfig_LockTimeoutDuration(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"72h", 72 * time.Hour},
		{"30m", 30 * time.Minute},
		{"1h30m", 90 * time.Minute},
		{"", tmpfactory.DefaultLockTimeout},
		{"soon", tmpfactory.DefaultLockTimeout},
		{"-1h", tmpfactory.DefaultLockTimeout},
		{"0s", tmpfactory.DefaultLockTimeout},
	}

	for _, tt := range tests {
		cfg := BaseTempConfig{LockTimeout: tt.value}
		result := cfg.LockTimeoutDuration()
		if result != tt.expected {
			t.Errorf("LockTimeoutDuration() with %q = %v, want %v", tt.value, result, tt.expected)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := filepath.Join("/custom/config", "basetemp")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", home)

		result := ConfigDir()
		expected := filepath.Join(home, ".config", "basetemp")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := filepath.Join("/custom/config", "basetemp", "config.yaml")
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		SetDefaults()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.BaseTemp.Keep != 3 || cfg.BaseTemp.Prefix != "run-" {
			t.Errorf("Load() = %+v, want defaults", cfg.BaseTemp)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		SetDefaults()
		viper.Set("basetemp.keep", 7)
		viper.Set("basetemp.lock_timeout", "1h")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.BaseTemp.Keep != 7 {
			t.Errorf("BaseTemp.Keep = %d, want 7", cfg.BaseTemp.Keep)
		}
		if cfg.BaseTemp.LockTimeoutDuration() != time.Hour {
			t.Errorf("LockTimeoutDuration() = %v, want 1h", cfg.BaseTemp.LockTimeoutDuration())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		SetDefaults()
		viper.Set("basetemp.keep", -2)
		viper.Set("logging.level", "loud")

		_, err := Load()
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("Load() error = %v, want ValidationErrors", err)
		}
		if len(verrs) != 2 {
			t.Errorf("Load() returned %d validation errors, want 2: %v", len(verrs), verrs)
		}
	})
}

func TestGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("basetemp.prefix", "a/b")

	// Get falls back to defaults when the configuration does not validate
	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.BaseTemp.Prefix != "run-" {
		t.Errorf("Get().BaseTemp.Prefix = %q, want %q", cfg.BaseTemp.Prefix, "run-")
	}
}
