package config

import (
	"strings"
	"testing"

	"github.com/Iron-Ham/hostbridge/internal/api"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got errors: %v", errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string // empty means valid
	}{
		{
			name: "loopback endpoint",
			modify: func(c *Config) {
				c.Endpoint = api.Endpoint{URL: "loopback://local", Workspace: "acme"}
			},
		},
		{
			name:      "endpoint without url",
			modify:    func(c *Config) { c.Endpoint.Workspace = "acme" },
			wantField: "endpoint.url",
		},
		{
			name:      "endpoint with unknown scheme",
			modify:    func(c *Config) { c.Endpoint = api.Endpoint{URL: "gopher://x", Workspace: "acme"} },
			wantField: "endpoint.url",
		},
		{
			name:      "endpoint without workspace",
			modify:    func(c *Config) { c.Endpoint.URL = "loopback://local" },
			wantField: "endpoint.workspace",
		},
		{
			name:      "token refresh too short",
			modify:    func(c *Config) { c.Bridge.TokenRefreshSeconds = 1 },
			wantField: "bridge.token_refresh_seconds",
		},
		{
			name:      "token refresh too long",
			modify:    func(c *Config) { c.Bridge.TokenRefreshSeconds = maxTokenRefreshSeconds + 1 },
			wantField: "bridge.token_refresh_seconds",
		},
		{
			name:   "start timeout disabled",
			modify: func(c *Config) { c.Bridge.StartTimeoutSeconds = 0 },
		},
		{
			name:      "negative start timeout",
			modify:    func(c *Config) { c.Bridge.StartTimeoutSeconds = -1 },
			wantField: "bridge.start_timeout_seconds",
		},
		{
			name:      "start timeout too long",
			modify:    func(c *Config) { c.Bridge.StartTimeoutSeconds = maxStartTimeoutSeconds + 1 },
			wantField: "bridge.start_timeout_seconds",
		},
		{
			name:      "negative max in flight",
			modify:    func(c *Config) { c.Bridge.MaxInFlight = -1 },
			wantField: "bridge.max_in_flight",
		},
		{
			name:      "max in flight too high",
			modify:    func(c *Config) { c.Bridge.MaxInFlight = maxInFlightLimit + 1 },
			wantField: "bridge.max_in_flight",
		},
		{
			name:      "unknown log level",
			modify:    func(c *Config) { c.Logging.Level = "verbose" },
			wantField: "logging.level",
		},
		{
			name:   "rotation disabled",
			modify: func(c *Config) { c.Logging.MaxSizeMB = 0 },
		},
		{
			name:      "log size too large",
			modify:    func(c *Config) { c.Logging.MaxSizeMB = maxLogSizeMB + 1 },
			wantField: "logging.max_size_mb",
		},
		{
			name:      "negative backups",
			modify:    func(c *Config) { c.Logging.MaxBackups = -1 },
			wantField: "logging.max_backups",
		},
		{
			name:      "null byte in log dir",
			modify:    func(c *Config) { c.Logging.Dir = "logs\x00" },
			wantField: "logging.dir",
		},
		{
			name: "bad metrics addr ignored while disabled",
			modify: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.Addr = "nonsense"
			},
		},
		{
			name: "bad metrics addr",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = "nonsense"
			},
			wantField: "metrics.addr",
		},
		{
			name: "bad metrics port",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = "localhost:http-ish"
			},
			wantField: "metrics.addr",
		},
		{
			name: "ephemeral metrics port",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = "127.0.0.1:0"
			},
		},
		{
			name:   "exact and brace patterns",
			modify: func(c *Config) { c.Events.LogPatterns = []string{"auth.invalid", "graph.{state_changed,endpoint_configured}"} },
		},
		{
			name:      "empty pattern",
			modify:    func(c *Config) { c.Events.LogPatterns = []string{"auth.*", ""} },
			wantField: "events.log_patterns[1]",
		},
		{
			name:      "unterminated pattern",
			modify:    func(c *Config) { c.Events.LogPatterns = []string{"graph.[state"} },
			wantField: "events.log_patterns[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()

			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("expected no errors, got %v", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_EndpointMessageListsSchemes(t *testing.T) {
	cfg := Default()
	cfg.Endpoint = api.Endpoint{URL: "gopher://x", Workspace: "acme"}

	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if !strings.Contains(errs[0].Message, api.LoopbackScheme) {
		t.Errorf("message %q should list the known schemes", errs[0].Message)
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Bridge.MaxInFlight = -5
	cfg.Logging.Level = "loud"
	cfg.Events.LogPatterns = []string{""}

	if errs := cfg.Validate(); len(errs) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(errs), errs)
	}
}
