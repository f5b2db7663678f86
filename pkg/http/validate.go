package http

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

// Fields are reported under their JSON names, dotted for nested structs.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

var ruleMessages = map[string]string{
	"required": "%s is required",
	"oneof":    "%s must be one of [%s]",
	"gt":       "%s must be greater than %s",
	"gte":      "%s must be at least %s",
	"lt":       "%s must be less than %s",
	"lte":      "%s must be at most %s",
	"min":      "%s must be at least %s",
	"max":      "%s must be at most %s",
}

// ReadAndValidateRequest binds the body into req, fills `default` tags and
// runs the `validate` rules. It returns nil when the request is usable.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			msg = fmt.Sprint(he.Message)
		}
		return []ValidationError{{Code: CodeBadRequest, Message: msg}}
	}
	if err := defaults.Set(req); err != nil {
		return []ValidationError{{Code: CodeInternal, Message: err.Error()}}
	}

	err := validate.StructCtx(c.Request().Context(), req)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Code: CodeBadRequest, Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) ValidationError {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	ve := ValidationError{
		Code:  "ERR_" + strings.ToUpper(fe.Tag()),
		Field: field,
	}

	param := fe.Param()
	switch fe.Tag() {
	case "oneof":
		ve.Params = map[string]interface{}{"options": strings.Fields(param)}
		param = strings.Join(strings.Fields(param), ", ")
	case "gt", "gte", "lt", "lte", "min", "max":
		ve.Params = map[string]interface{}{"limit": param}
	}

	if tmpl, ok := ruleMessages[fe.Tag()]; ok {
		if strings.Count(tmpl, "%s") == 1 {
			ve.Message = fmt.Sprintf(tmpl, field)
		} else {
			ve.Message = fmt.Sprintf(tmpl, field, param)
		}
	} else {
		ve.Message = fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
	return ve
}
