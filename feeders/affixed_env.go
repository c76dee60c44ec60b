package feeders

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// ErrEnvEmptyPrefixAndSuffix indicates that both prefix and suffix cannot be empty
var ErrEnvEmptyPrefixAndSuffix = errors.New("env: prefix or suffix cannot be empty")

var durationType = reflect.TypeOf(time.Duration(0))

// AffixedEnvFeeder reads environment variables named after the `env` tag of
// each field, wrapped in a prefix and/or suffix: with prefix "PLUGGABLE" the
// field tagged `env:"LOG_LEVEL"` is read from PLUGGABLE_LOG_LEVEL. Nested
// structs are walked with the same affixes. Unset or empty variables leave the
// field untouched.
type AffixedEnvFeeder struct {
	Prefix string
	Suffix string
}

// NewAffixedEnvFeeder creates a new AffixedEnvFeeder with the specified prefix and suffix
func NewAffixedEnvFeeder(prefix, suffix string) AffixedEnvFeeder {
	return AffixedEnvFeeder{Prefix: prefix, Suffix: suffix}
}

// Feed reads environment variables and populates the provided structure
func (f AffixedEnvFeeder) Feed(structure any) error {
	rv := reflect.ValueOf(structure)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w, got %T", ErrFeederInvalidTarget, structure)
	}
	if f.Prefix == "" && f.Suffix == "" {
		return ErrEnvEmptyPrefixAndSuffix
	}
	return f.fillStruct(rv.Elem())
}

func (f AffixedEnvFeeder) fillStruct(rv reflect.Value) error {
	for i := range rv.NumField() {
		field := rv.Field(i)
		fieldType := rv.Type().Field(i)
		if !fieldType.IsExported() {
			continue
		}
		if err := f.fillField(field, fieldType); err != nil {
			return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
		}
	}
	return nil
}

func (f AffixedEnvFeeder) fillField(field reflect.Value, fieldType reflect.StructField) error {
	envTag, tagged := fieldType.Tag.Lookup("env")
	switch {
	case field.Kind() == reflect.Struct && !tagged:
		return f.fillStruct(field)
	case field.Kind() == reflect.Pointer && !tagged:
		if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
			return f.fillStruct(field.Elem())
		}
		return nil
	case !tagged:
		return nil
	}

	value := os.Getenv(f.envName(envTag))
	if value == "" {
		return nil
	}
	return setFieldValue(field, value)
}

func (f AffixedEnvFeeder) envName(tag string) string {
	name := strings.ToUpper(tag)
	if f.Prefix != "" {
		name = strings.ToUpper(strings.TrimSuffix(f.Prefix, "_")) + "_" + name
	}
	if f.Suffix != "" {
		name = name + "_" + strings.ToUpper(strings.TrimPrefix(f.Suffix, "_"))
	}
	return name
}

// setFieldValue converts and sets a field value
func setFieldValue(field reflect.Value, strValue string) error {
	if !field.CanSet() {
		return ErrFeederFieldNotSet
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
		}
		field.SetInt(int64(d))
		return nil
	}

	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
		var items []string
		for _, item := range strings.Split(strValue, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items).Convert(field.Type()))
		return nil
	}

	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("cannot convert value to type %v: %w", field.Type(), err)
	}
	field.Set(reflect.ValueOf(convertedValue).Convert(field.Type()))
	return nil
}
