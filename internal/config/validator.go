package config

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/errors"
	"github.com/Iron-Ham/hostbridge/internal/event"
	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "bridge.max_in_flight")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Bounds for numeric settings.
const (
	minTokenRefreshSeconds = 10
	maxTokenRefreshSeconds = 24 * 60 * 60
	maxStartTimeoutSeconds = 600
	maxInFlightLimit       = 1024
	maxLogSizeMB           = 1000
	maxLogBackups          = 100
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return logging.ValidLevels()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateEndpoint()...)
	errors = append(errors, c.validateBridge()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateEvents()...)

	return errors
}

// validateEndpoint validates the endpoint section. An empty section is
// valid: hosts then ask for an endpoint before starting.
func (c *Config) validateEndpoint() []ValidationError {
	if c.Endpoint.IsZero() {
		return nil
	}

	err := c.Endpoint.Validate()
	if err == nil {
		return nil
	}

	field := "endpoint"
	var verr *errors.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		field = verr.Field
	}
	value := any(c.Endpoint.Redacted())
	message := err.Error()
	switch field {
	case "endpoint.url":
		value = c.Endpoint.URL
		message += fmt.Sprintf(" (known schemes: %s)", strings.Join(api.Schemes(), ", "))
	case "endpoint.workspace":
		value = c.Endpoint.Workspace
	}
	return []ValidationError{{
		Field:   field,
		Value:   value,
		Message: message,
	}}
}

// validateBridge validates the BridgeConfig
func (c *Config) validateBridge() []ValidationError {
	var errors []ValidationError

	if c.Bridge.TokenRefreshSeconds < minTokenRefreshSeconds || c.Bridge.TokenRefreshSeconds > maxTokenRefreshSeconds {
		errors = append(errors, ValidationError{
			Field:   "bridge.token_refresh_seconds",
			Value:   c.Bridge.TokenRefreshSeconds,
			Message: fmt.Sprintf("must be between %d and %d", minTokenRefreshSeconds, maxTokenRefreshSeconds),
		})
	}

	if c.Bridge.StartTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "bridge.start_timeout_seconds",
			Value:   c.Bridge.StartTimeoutSeconds,
			Message: "must be non-negative (0 disables the timeout)",
		})
	} else if c.Bridge.StartTimeoutSeconds > maxStartTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "bridge.start_timeout_seconds",
			Value:   c.Bridge.StartTimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d", maxStartTimeoutSeconds),
		})
	}

	if c.Bridge.MaxInFlight < 0 {
		errors = append(errors, ValidationError{
			Field:   "bridge.max_in_flight",
			Value:   c.Bridge.MaxInFlight,
			Message: "must be non-negative (0 means unlimited)",
		})
	} else if c.Bridge.MaxInFlight > maxInFlightLimit {
		errors = append(errors, ValidationError{
			Field:   "bridge.max_in_flight",
			Value:   c.Bridge.MaxInFlight,
			Message: fmt.Sprintf("exceeds maximum of %d", maxInFlightLimit),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// 0 disables rotation
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	} else if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 || c.Logging.MaxBackups > maxLogBackups {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: fmt.Sprintf("must be between 0 and %d", maxLogBackups),
		})
	}

	if strings.ContainsRune(c.Logging.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "logging.dir",
			Value:   c.Logging.Dir,
			Message: "contains invalid null character",
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig. The address is only checked
// when metrics are enabled.
func (c *Config) validateMetrics() []ValidationError {
	if !c.Metrics.Enabled {
		return nil
	}

	_, port, err := net.SplitHostPort(c.Metrics.Addr)
	if err != nil {
		return []ValidationError{{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "must be host:port",
		}}
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return []ValidationError{{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "port must be a number between 0 and 65535",
		}}
	}
	return nil
}

// validateEvents validates the EventsConfig
func (c *Config) validateEvents() []ValidationError {
	var errors []ValidationError

	for i, pattern := range c.Events.LogPatterns {
		if err := event.ValidatePattern(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("events.log_patterns[%d]", i),
				Value:   pattern,
				Message: err.Error(),
			})
		}
	}

	return errors
}
