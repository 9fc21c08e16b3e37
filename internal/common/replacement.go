// -----------------------------------------------------------------------
// Variable references - {NAME} expansion in configuration values
// -----------------------------------------------------------------------

// The {NAME} syntax lets configuration files reference variables from the
// environment (including .env) instead of storing secrets in the file.
//
// Example:
//
//	[credentials]
//	password = "{SYS_ADMIN_PASSWORD}"
//
// Replacement is case-sensitive. Unknown names are left unchanged and
// reported, never treated as errors.
package common

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
)

// varRefPattern matches {NAME} references
var varRefPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_-]*)\}`)

// LookupFunc resolves one variable, os.LookupEnv has this shape
type LookupFunc func(name string) (string, bool)

// ReplaceVarReferences replaces every {NAME} in input with its value.
// Unresolved names are returned, the references stay in place.
func ReplaceVarReferences(input string, lookup LookupFunc) (string, []string) {
	if input == "" {
		return input, nil
	}

	var unresolved []string
	result := varRefPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := lookup(name); ok {
			return value
		}
		unresolved = append(unresolved, name)
		return match
	})

	return result, unresolved
}

// ReplaceInStruct replaces {NAME} references in every exported string and
// []string field of the struct v points to, recursing into nested structs.
// It returns the sorted, de-duplicated names that could not be resolved.
func ReplaceInStruct(v interface{}, lookup LookupFunc) ([]string, error) {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil, fmt.Errorf("ReplaceInStruct requires a non-nil pointer, got %T", v)
	}

	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("ReplaceInStruct requires a struct pointer, got pointer to %v", val.Kind())
	}

	seen := map[string]bool{}
	replaceInStructValue(val, lookup, seen)

	unresolved := make([]string, 0, len(seen))
	for name := range seen {
		unresolved = append(unresolved, name)
	}
	sort.Strings(unresolved)
	return unresolved, nil
}

func replaceInStructValue(val reflect.Value, lookup LookupFunc, unresolved map[string]bool) {
	replace := func(field reflect.Value) {
		value, missing := ReplaceVarReferences(field.String(), lookup)
		field.SetString(value)
		for _, name := range missing {
			unresolved[name] = true
		}
	}

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			replace(field)

		case reflect.Struct:
			replaceInStructValue(field, lookup, unresolved)

		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				replaceInStructValue(field.Elem(), lookup, unresolved)
			}

		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				for j := 0; j < field.Len(); j++ {
					replace(field.Index(j))
				}
			}
		}
	}
}
