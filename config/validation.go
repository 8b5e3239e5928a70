package config

import (
	"fmt"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for field %q: %s", e.Field, e.Message)
}

// Validator provides configuration validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors: []ValidationError{},
	}
}

// RequireNonEmpty validates that a string field is not empty
func (v *Validator) RequireNonEmpty(field, value string) *Validator {
	if value == "" {
		v.errors = append(v.errors, ValidationError{
			Field:   field,
			Message: "value cannot be empty",
		})
	}
	return v
}

// RequirePositive validates that an integer field is greater than 0
func (v *Validator) RequirePositive(field string, value int64) *Validator {
	if value <= 0 {
		v.errors = append(v.errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be positive, got %d", value),
		})
	}
	return v
}

// ValidateRange validates that an integer field is within a range [min, max]
func (v *Validator) ValidateRange(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.errors = append(v.errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be between %d and %d, got %d", min, max, value),
		})
	}
	return v
}

// ValidateFloatRange validates that a float field is within a range [min, max]
func (v *Validator) ValidateFloatRange(field string, value, min, max float64) *Validator {
	if value < min || value > max {
		v.errors = append(v.errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be between %.2f and %.2f, got %.2f", min, max, value),
		})
	}
	return v
}

// ValidatePort validates that a port number is valid (1-65535)
func (v *Validator) ValidatePort(field string, port int) *Validator {
	return v.ValidateRange(field, port, 1, 65535)
}

// ValidateDBNumber validates that a database number is valid (0-15 for Redis)
func (v *Validator) ValidateDBNumber(field string, db int) *Validator {
	return v.ValidateRange(field, db, 0, 15)
}

// ValidateOneOf validates that a string value is one of the allowed options
func (v *Validator) ValidateOneOf(field string, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if a == value {
			return v
		}
	}
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be one of %v, got %q", allowed, value),
	})
	return v
}

// HasErrors returns true if there are any validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Error returns a combined error message or nil if no errors
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}

	msg := "configuration validation failed:\n"
	for _, e := range v.errors {
		msg += fmt.Sprintf("  - %s: %s\n", e.Field, e.Message)
	}
	return fmt.Errorf("%s", msg)
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ValidateReasonerConfig validates the reasoning-provider configuration.
// The API key is deliberately not required here; it may arrive per request
// from the UI and is checked at turn time.
func ValidateReasonerConfig(cfg ReasonerConfig) error {
	v := NewValidator()
	v.RequireNonEmpty("model", cfg.Model)
	return v.Error()
}

// ValidateSynthesizerConfig validates the synthesis-provider configuration.
func ValidateSynthesizerConfig(cfg SynthesizerConfig) error {
	v := NewValidator()

	v.ValidateOneOf("provider", cfg.Provider, "groq", "claude")
	v.RequireNonEmpty("model", cfg.Model)
	v.ValidateFloatRange("temperature", cfg.Temperature, 0.0, 2.0)
	v.ValidateFloatRange("topP", cfg.TopP, 0.0, 1.0)
	v.RequirePositive("maxTokens", cfg.MaxTokens)

	return v.Error()
}

// ValidateRedisConfig validates Redis configuration
func ValidateRedisConfig(cfg RedisConfig) error {
	v := NewValidator()

	v.RequireNonEmpty("addr", cfg.Addr)
	v.ValidateDBNumber("db", cfg.DB)
	v.RequireNonEmpty("prefix", cfg.Prefix)

	return v.Error()
}

// ValidatePostgresConfig validates PostgreSQL configuration
func ValidatePostgresConfig(cfg PostgresConfig) error {
	v := NewValidator()

	v.RequireNonEmpty("host", cfg.Host)
	v.ValidatePort("port", cfg.Port)
	v.RequireNonEmpty("user", cfg.User)
	v.RequireNonEmpty("dbName", cfg.DBName)
	v.ValidateOneOf("sslMode", cfg.SSLMode, "disable", "require", "verify-ca", "verify-full")

	return v.Error()
}

// ValidateMongoConfig validates MongoDB configuration
func ValidateMongoConfig(cfg MongoConfig) error {
	v := NewValidator()

	v.RequireNonEmpty("uri", cfg.URI)
	v.RequireNonEmpty("database", cfg.Database)
	v.RequireNonEmpty("collection", cfg.Collection)

	return v.Error()
}

// Validate checks the whole configuration, including only the history store
// that is actually selected.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("listen", c.Listen)
	v.ValidateOneOf("store", c.Store, "memory", "redis", "postgres", "mongo")
	if err := v.Error(); err != nil {
		return err
	}

	if err := ValidateReasonerConfig(c.Reasoner); err != nil {
		return err
	}
	if err := ValidateSynthesizerConfig(c.Synthesizer); err != nil {
		return err
	}

	switch c.Store {
	case "redis":
		return ValidateRedisConfig(c.Redis)
	case "postgres":
		return ValidatePostgresConfig(c.Postgres)
	case "mongo":
		return ValidateMongoConfig(c.Mongo)
	}
	return nil
}
