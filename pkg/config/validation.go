package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("chunk_size", validateChunkSize)
}

// validateChunkSize accepts positive multiples of the resumable upload chunk
// alignment.
func validateChunkSize(fl validator.FieldLevel) bool {
	n := fl.Field().Int()
	return n > 0 && n%drive.ChunkAlignment == 0
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// A chunk never exceeds the threshold, otherwise files just above the
	// threshold would be sent in a single chunk anyway
	if cfg.Upload.ChunkSize > cfg.Upload.Threshold && cfg.Upload.Threshold > 0 {
		return fmt.Errorf("upload: chunk_size (%d) must not exceed threshold (%d)",
			cfg.Upload.ChunkSize, cfg.Upload.Threshold)
	}

	if cfg.Drive.Type == "s3" {
		if bucket, _ := cfg.Drive.S3["bucket"].(string); bucket == "" {
			return fmt.Errorf("drive.s3: bucket is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
