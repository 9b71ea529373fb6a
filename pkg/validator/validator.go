// Package validator implements the tag-driven request validation used by
// the HTTP handlers. It covers the handful of rules the API needs
// (required, email, min/max length); anything richer belongs in the
// service layer.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateStruct checks every field of s against its validate tag and
// returns the first violation
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		tag := t.Field(i).Tag.Get("validate")
		if tag == "" {
			continue
		}
		for _, rule := range strings.Split(tag, ",") {
			if err := checkRule(t.Field(i).Name, v.Field(i), rule); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkRule(name string, value reflect.Value, rule string) error {
	switch {
	case rule == "required":
		if isZero(value) {
			return fmt.Errorf("%s is required", name)
		}
	case rule == "email":
		if value.Kind() == reflect.String {
			if err := ValidateEmail(value.String()); err != nil {
				return fmt.Errorf("%s must be a valid email", name)
			}
		}
	case strings.HasPrefix(rule, "min="):
		if n, err := strconv.Atoi(rule[len("min="):]); err == nil {
			if value.Kind() == reflect.String && len(value.String()) < n {
				return fmt.Errorf("%s must be at least %d characters", name, n)
			}
		}
	case strings.HasPrefix(rule, "max="):
		if n, err := strconv.Atoi(rule[len("max="):]); err == nil {
			if value.Kind() == reflect.String && len(value.String()) > n {
				return fmt.Errorf("%s must be at most %d characters", name, n)
			}
		}
	}
	return nil
}

func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// ValidateEmail checks an email address for plausible shape
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateRequired checks that a value is non-blank
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// SanitizeString strips null bytes and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
