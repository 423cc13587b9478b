package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/aleister1102/folderhook/internal/common"
	"github.com/aleister1102/folderhook/internal/models"
	"github.com/go-playground/validator/v10"
)

var extensionPattern = regexp.MustCompile(`^\.?[a-z0-9]+$`)

// ValidateConfig performs validation on the GlobalConfig structure.
// The returned error wraps common.ErrInvalidConfiguration.
func ValidateConfig(cfg *GlobalConfig) error {
	validate := newValidator()

	var messages []string
	if err := validate.Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return fmt.Errorf("configuration validation error: %w", err)
		}
		for _, e := range errs {
			messages = append(messages, formatFieldError(e))
		}
	}
	messages = append(messages, duplicateFolderMessages(cfg.WatchConfig.Folders)...)

	if len(messages) > 0 {
		return fmt.Errorf("%w: configuration validation failed:\n  %s",
			common.ErrInvalidConfiguration, strings.Join(messages, "\n  "))
	}
	return nil
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// Report fields by their YAML key so messages match the config file.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Webhook URLs must be absolute http(s) URLs with a host
	_ = validate.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		if raw == "" {
			return true
		}
		u, err := url.Parse(raw)
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})

	// Comma-separated extension allow-list such as ".jpg,png"
	_ = validate.RegisterValidation("extlist", func(fl validator.FieldLevel) bool {
		valid := 0
		for _, item := range strings.Split(fl.Field().String(), ",") {
			item = strings.ToLower(strings.TrimSpace(item))
			if item == "" {
				continue
			}
			if !extensionPattern.MatchString(item) {
				return false
			}
			valid++
		}
		return valid > 0
	})

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		level := strings.ToLower(fl.Field().String())
		switch level {
		case "", "trace", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		format := strings.ToLower(fl.Field().String())
		switch format {
		case "", "console", "text", "json":
			return true
		default:
			return false
		}
	})

	return validate
}

func formatFieldError(e validator.FieldError) string {
	fieldName := e.Namespace()
	if i := strings.Index(fieldName, "."); i >= 0 {
		fieldName = fieldName[i+1:]
	}

	msg := fmt.Sprintf("Validation failed for '%s': rule '%s'", fieldName, e.Tag())
	if e.Param() != "" {
		msg += fmt.Sprintf(" (expected: %s)", e.Param())
	}
	if e.Value() != nil && e.Value() != "" {
		msg += fmt.Sprintf(", actual: '%v'", e.Value())
	}
	return msg
}

// duplicateFolderMessages reports folder paths that appear more than once after cleaning
func duplicateFolderMessages(folders []models.WatchedFolder) []string {
	seen := make(map[string]int, len(folders))
	var messages []string
	for i, f := range folders {
		if f.Path == "" {
			continue
		}
		key := filepath.Clean(f.Path)
		if first, ok := seen[key]; ok {
			messages = append(messages, fmt.Sprintf(
				"Validation failed for 'watch_config.folders[%d].path': rule 'unique' (expected: distinct from folders[%d]), actual: '%s'",
				i, first, f.Path))
			continue
		}
		seen[key] = i
	}
	return messages
}
