// internal/pkg/config/validators.go
package config

import (
	"fmt"
	"reflect"
	"strings"
)

// Validator checks a loaded configuration
type Validator interface {
	Validate(cfg *Config) error
}

type chain []Validator

// ChainValidators runs validators in order and stops at the first error
func ChainValidators(validators ...Validator) Validator {
	return chain(validators)
}

func (c chain) Validate(cfg *Config) error {
	for _, v := range c {
		if err := v.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

// BasicValidator performs basic configuration validation
type BasicValidator struct{}

// Validate performs basic validation
func (v *BasicValidator) Validate(cfg *Config) error {
	if err := validateRequiredFields(cfg); err != nil {
		return err
	}

	if cfg.Postgres.Port < 1 || cfg.Postgres.Port > 65535 {
		return fmt.Errorf("%w: postgres port %d out of range", ErrInvalidConfig, cfg.Postgres.Port)
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Provider {
		case "otlp":
			if cfg.Telemetry.OTLPEndpoint == "" {
				return fmt.Errorf("%w: OTEL_EXPORTER_OTLP_ENDPOINT must be set when OTEL_ENABLED is true and OTEL_PROVIDER is 'otlp'", ErrMissingRequiredConfig)
			}
		default:
			return fmt.Errorf("%w: unsupported OTEL_PROVIDER %q", ErrInvalidConfig, cfg.Telemetry.Provider)
		}
	}

	if cfg.Security.RateLimitRequests < 0 {
		return fmt.Errorf("%w: rate limit requests must not be negative", ErrInvalidConfig)
	}
	if cfg.Security.RateLimitRequests > 0 && cfg.Security.RateLimitDuration <= 0 {
		return fmt.Errorf("%w: rate limit duration must be positive", ErrInvalidConfig)
	}

	if cfg.Server.HealthRoutePrefix != "" && !strings.HasPrefix(cfg.Server.HealthRoutePrefix, "/") {
		return fmt.Errorf("%w: health route prefix must start with '/'", ErrInvalidConfig)
	}

	return nil
}

// ProductionValidator performs strict validation for production environments
type ProductionValidator struct{}

// Validate performs production-specific validation
func (v *ProductionValidator) Validate(cfg *Config) error {
	if cfg.Postgres.SSLMode == "disable" {
		return fmt.Errorf("%w: database SSL must be enabled in production", ErrInvalidConfig)
	}

	if !cfg.Security.SecureHeaders {
		return fmt.Errorf("%w: secure headers must be enabled in production", ErrInvalidConfig)
	}

	for _, origin := range cfg.Security.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("%w: wildcard origin (*) not allowed in production", ErrInvalidConfig)
		}
	}

	return nil
}

// validateRequiredFields uses reflection to check required struct tags
func validateRequiredFields(cfg interface{}) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	return validateStruct(v, "")
}

func validateStruct(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		fieldName := fieldType.Name

		if prefix != "" {
			fieldName = prefix + "." + fieldName
		}

		if required := fieldType.Tag.Get("required"); required == "true" {
			if isZeroValue(field) {
				return fmt.Errorf("%w: %s", ErrMissingRequiredConfig, fieldName)
			}
		}

		if field.Kind() == reflect.Struct {
			if err := validateStruct(field, fieldName); err != nil {
				return err
			}
		}
	}

	return nil
}

func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}
