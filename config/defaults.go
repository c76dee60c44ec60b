package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/golobby/cast"
)

const tagDefault = "default"

// Errors returned while applying defaults.
var (
	ErrConfigNotPointer       = errors.New("config must be a non-nil pointer to a struct")
	ErrUnsupportedDefaultType = errors.New("unsupported type for default value")
)

// ProcessDefaults fills every zero-valued field carrying a `default` tag.
// Nested structs are walked; nil struct pointers are left alone.
func ProcessDefaults(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrConfigNotPointer
	}
	return processStructDefaults(v.Elem())
}

func processStructDefaults(v reflect.Value) error {
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}

		switch {
		case field.Kind() == reflect.Struct:
			if err := processStructDefaults(field); err != nil {
				return err
			}
			continue
		case field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct:
			if !field.IsNil() {
				if err := processStructDefaults(field.Elem()); err != nil {
					return err
				}
			}
			continue
		}

		defaultVal, hasDefault := fieldType.Tag.Lookup(tagDefault)
		if !hasDefault || !field.IsZero() {
			continue
		}
		if err := setDefaultValue(field, defaultVal); err != nil {
			return fmt.Errorf("failed to set default value for %s: %w", fieldType.Name, err)
		}
	}
	return nil
}

func setDefaultValue(field reflect.Value, defaultVal string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(defaultVal)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", defaultVal, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		value, err := cast.FromType(defaultVal, field.Type())
		if err != nil {
			return fmt.Errorf("cannot convert %q to %v: %w", defaultVal, field.Type(), err)
		}
		field.Set(reflect.ValueOf(value).Convert(field.Type()))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDefaultType, field.Kind())
	}
}
