// Package form decodes and validates the HTML forms of the blog.
//
// Each form is a struct whose fields carry two tags:
//
//	form:"title"                    → the input name, also the key in Errors
//	validate:"required,max=255"     → go-playground/validator rules
//
// Messages for failed rules come from the form's Messages method when it
// defines one, keyed "field.rule", and otherwise from a generic default.
package form

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	formdec "github.com/ajg/form"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/inkwell/internal/apperror"
)

// Errors maps an input name to the message shown beneath it.
type Errors map[string]string

// Has reports whether field has an error.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Add records msg for field unless one is already recorded.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// AddError records err under its AppError field, or under "form" when it
// has none.
func (e Errors) AddError(err error) {
	field := apperror.FieldOf(err)
	if field == "" {
		field = "form"
	}
	e.Add(field, apperror.MessageOf(err, "Something went wrong, please try again."))
}

// Err converts e into a validation error for its alphabetically first
// field, or nil when e is empty.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	fields := slices.Sorted(maps.Keys(e))
	return apperror.ValidationFailed(fields[0], e[fields[0]])
}

// messager lets a form supply its own wording per "field.rule".
type messager interface {
	Messages() map[string]string
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their form name instead of the Go field name.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate runs the validate tags of v (a pointer to a form struct) and
// returns one message per failing field. A nil result means v is valid.
func Validate(v any) Errors {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{"form": err.Error()}
	}

	var custom map[string]string
	if m, ok := v.(messager); ok {
		custom = m.Messages()
	}

	errs := Errors{}
	for _, fe := range fieldErrs {
		field := fe.Field()
		if msg, ok := custom[field+"."+fe.Tag()]; ok {
			errs.Add(field, msg)
			continue
		}
		errs.Add(field, defaultMessage(fe))
	}
	return errs
}

func defaultMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Not a valid email address."
	case "max":
		return fmt.Sprintf("Must be %s characters or fewer.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "eqfield":
		return "Fields must match."
	default:
		return "Invalid value."
	}
}

// Decode parses r's form body into dst, a pointer to a struct whose fields
// carry form tags. The values are decoded by ajg/form, the decoder behind
// render.DecodeForm. Inputs dst has no field for are ignored. Strings are
// trimmed except for fields tagged form:"name,raw", and ids below 1 are
// dropped from []int64 fields.
func Decode(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("form: parsing request: %w", err)
	}
	fields, err := fieldsOf(dst)
	if err != nil {
		return err
	}

	// ajg/form keeps one value per key, so repeated inputs for a slice
	// field are spelled out as name.0, name.1 and so on.
	values := url.Values{}
	for name, vs := range r.PostForm {
		f, ok := fields[name]
		if !ok || len(vs) == 0 {
			continue
		}
		if !f.raw {
			vs = trimAll(vs)
		}
		if f.v.Kind() != reflect.Slice {
			values.Set(name, vs[0])
			continue
		}
		for i, v := range vs {
			values.Set(name+"."+strconv.Itoa(i), v)
		}
	}

	if err := formdec.DecodeValues(dst, values); err != nil {
		return fmt.Errorf("form: %w", err)
	}

	for _, f := range fields {
		if ids, ok := f.v.Addr().Interface().(*[]int64); ok {
			*ids = slices.DeleteFunc(*ids, func(id int64) bool { return id < 1 })
		}
	}
	return nil
}

type field struct {
	v   reflect.Value
	raw bool
}

// fieldsOf indexes the tagged fields of dst by input name.
func fieldsOf(dst any) (map[string]field, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, errors.New("form: Decode needs a pointer to a struct")
	}
	rv = rv.Elem()

	fields := map[string]field{}
	for i := range rv.NumField() {
		name, opts, _ := strings.Cut(rv.Type().Field(i).Tag.Get("form"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = field{v: rv.Field(i), raw: opts == "raw"}
	}
	return fields, nil
}

func trimAll(vs []string) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
