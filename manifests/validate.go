package manifests

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("plugin_id", func(fl validator.FieldLevel) bool {
		return pluginIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("version", func(fl validator.FieldLevel) bool {
		return semver.IsValid(withV(fl.Field().String()))
	})
	return v
}

// describe turns validator errors into one line per failing field.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}
