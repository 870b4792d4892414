package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct-tag validation covers the declarative constraints (required fields,
// oneof enumerations, positive durations); custom rules cover constraints
// that cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Metadata.Type == "sqlite" {
		path, _ := cfg.Metadata.SQLite["path"].(string)
		if path == "" {
			return fmt.Errorf("metadata.sqlite: path is required")
		}
	}

	if cfg.Storage.Type == "local" {
		root, _ := cfg.Storage.Local["root"].(string)
		if root == "" {
			return fmt.Errorf("storage.local: root is required")
		}
	}

	if cfg.Storage.Type == "s3" {
		bucket, _ := cfg.Storage.S3["bucket"].(string)
		if bucket == "" {
			return fmt.Errorf("storage.s3: bucket is required")
		}
		region, _ := cfg.Storage.S3["region"].(string)
		if region == "" {
			return fmt.Errorf("storage.s3: region is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
