package config

import (
	"fmt"
	"reflect"
)

// Validator is a config that can check its own values.
type Validator interface {
	Validate() []error
}

// Validate collects the errors of all cfgs. Nil configs are skipped, so
// optional sections can be passed as they are.
func Validate(cfgs ...Validator) []error {
	var out []error

	for _, cfg := range cfgs {
		if isNil(cfg) {
			continue
		}
		out = append(out, cfg.Validate()...)
	}

	return out
}

func isNil(cfg Validator) bool {
	if cfg == nil {
		return true
	}
	v := reflect.ValueOf(cfg)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%d not in [1, 65535]", port)
	}

	return nil
}

// nonNegative reports a negative flag value.
func nonNegative[T int | int64](flag string, v T) error {
	if v < 0 {
		return fmt.Errorf("'--%s' must not be negative", flag)
	}
	return nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}
