package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one configuration key that failed validation.
type FieldError struct {
	// Key is the dotted configuration key (e.g. "ssh.port")
	Key string `json:"key"`

	// Message describes why the validation failed
	Message string `json:"message"`

	// Value is the rejected value
	Value interface{} `json:"value,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// ValidationErrors collects every FieldError of a configuration.
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	// report keys the way they are written in config.yaml
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct constraints and the rules that
// span several sections.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if err := structValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, FieldError{
				Key:     fieldKey(fe.Namespace()),
				Message: describe(fe),
				Value:   fe.Value(),
			})
		}
	}

	if cfg.Report.Enabled {
		switch cfg.Report.Backend {
		case "couchdb":
			if cfg.Report.CouchDB.URL == "" {
				errs = append(errs, FieldError{Key: "report.couchdb.url", Message: "is required when reports are enabled"})
			}
			if cfg.Report.CouchDB.Database == "" {
				errs = append(errs, FieldError{Key: "report.couchdb.database", Message: "is required when reports are enabled"})
			}
		case "mongodb":
			if cfg.Report.MongoDB.URI == "" {
				errs = append(errs, FieldError{Key: "report.mongodb.uri", Message: "is required when reports are enabled"})
			}
			if cfg.Report.MongoDB.Database == "" {
				errs = append(errs, FieldError{Key: "report.mongodb.database", Message: "is required when reports are enabled"})
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// fieldKey drops the root struct name from a validator namespace.
func fieldKey(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "contains":
		return fmt.Sprintf("must contain %q", fe.Param())
	case "excludesall":
		return fmt.Sprintf("must not contain any of %q", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
