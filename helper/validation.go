package helper

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidateStructIsPopulated checks that all fields tagged mandatory:"yes" in
// cfg are non-zero. The returned error lists the errorTxt tag of each unset
// field so callers get one actionable message instead of failing per field.
func ValidateStructIsPopulated(cfg interface{}) error {
	errs := make([]string, 0)
	collectUnsetFieldErrorTxt(cfg, &errs)
	if len(errs) > 0 {
		return fmt.Errorf("please supply values for %v", strings.Join(errs, ", "))
	}
	return nil
}

// collectUnsetFieldErrorTxt walks the struct (descending into nested structs)
// and appends the errorTxt tag of every mandatory zero-valued exported field.
func collectUnsetFieldErrorTxt(i interface{}, errTags *[]string) {
	val := reflect.ValueOf(i)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}
	typ := val.Type()
	for idx := 0; idx < val.NumField(); idx++ {
		f := val.Field(idx)
		if !f.CanInterface() { // skip unexported fields.
			continue
		}
		switch f.Kind() {
		case reflect.Struct:
			collectUnsetFieldErrorTxt(f.Interface(), errTags)
		case reflect.Slice, reflect.Map:
			// don't enforce mandatory on collections.
		default:
			if typ.Field(idx).Tag.Get("mandatory") != "yes" {
				continue
			}
			if f.Interface() == reflect.Zero(f.Type()).Interface() { // if the field is its zero value...
				if errTxt := typ.Field(idx).Tag.Get("errorTxt"); errTxt != "" {
					*errTags = append(*errTags, errTxt)
				} else {
					*errTags = append(*errTags, typ.Field(idx).Name)
				}
			}
		}
	}
}
