package config

import (
	"os"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestGetenvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_INVALID", "forty-two")

	if got := getenvInt("TEST_INT", 1); got != 42 {
		t.Errorf("getenvInt() = %v, want 42", got)
	}
	if got := getenvInt("TEST_INT_INVALID", 7); got != 7 {
		t.Errorf("getenvInt() with invalid value = %v, want default 7", got)
	}
	if got := getenvInt("TEST_INT_MISSING", 3); got != 3 {
		t.Errorf("getenvInt() with missing value = %v, want default 3", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "single", input: "https://car.example.com", expected: []string{"https://car.example.com"}},
		{name: "spaces and quotes", input: ` "a.com" , 'b.com',, c.com `, expected: []string{"a.com", "b.com", "c.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestLoadMemoryBackend(t *testing.T) {
	t.Setenv("TESLAHUB_PUBLIC_URL", "https://teslahub.example.com/")
	t.Setenv("TESLAHUB_RELAY_BACKEND", "Memory")
	t.Setenv("TESLAHUB_SESSION_TIMEOUT", "2m")
	t.Setenv("TESLAHUB_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg := Load()

	if cfg.PublicURL != "https://teslahub.example.com" {
		t.Errorf("PublicURL = %q, trailing slash should be trimmed", cfg.PublicURL)
	}
	if cfg.RelayBackend != BackendMemory {
		t.Errorf("RelayBackend = %q, want %q", cfg.RelayBackend, BackendMemory)
	}
	if cfg.SessionTimeout != 2*time.Minute {
		t.Errorf("SessionTimeout = %v, want 2m", cfg.SessionTimeout)
	}
	if cfg.SweepHorizon != time.Hour || cfg.SweepInterval != time.Hour {
		t.Errorf("sweep defaults = %v/%v, want 1h/1h", cfg.SweepInterval, cfg.SweepHorizon)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
}

func TestLoadPanics(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing public url",
			env:  map[string]string{"TESLAHUB_RELAY_BACKEND": "memory"},
		},
		{
			name: "relative public url",
			env:  map[string]string{"TESLAHUB_PUBLIC_URL": "teslahub.example.com", "TESLAHUB_RELAY_BACKEND": "memory"},
		},
		{
			name: "unknown backend",
			env:  map[string]string{"TESLAHUB_PUBLIC_URL": "https://x.example.com", "TESLAHUB_RELAY_BACKEND": "etcd"},
		},
		{
			name: "redis without address",
			env:  map[string]string{"TESLAHUB_PUBLIC_URL": "https://x.example.com", "TESLAHUB_RELAY_BACKEND": "redis"},
		},
		{
			name: "redis password required",
			env: map[string]string{
				"TESLAHUB_PUBLIC_URL":    "https://x.example.com",
				"TESLAHUB_RELAY_BACKEND": "redis",
				"TESLAHUB_REDIS_ADDR":    "localhost:6379",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TESLAHUB_PUBLIC_URL", "")
			t.Setenv("TESLAHUB_RELAY_BACKEND", "")
			t.Setenv("TESLAHUB_REDIS_ADDR", "")
			t.Setenv("TESLAHUB_REDIS_PASSWORD", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Load() should have panicked")
				}
			}()
			_ = Load()
		})
	}
}


func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}
