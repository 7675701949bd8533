// Package validation holds fail-fast checks for constructor wiring.
// They panic because a missing dependency is a programmer error, not a runtime condition.
package validation

import (
	"fmt"
	"reflect"
)

// AssertNotNil panics if ptr is nil.
//
//	validation.AssertNotNil(pool, "database pool")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

// AssertPresent panics if dep is a nil interface or an interface wrapping a nil pointer.
// Use it for dependencies typed as interfaces, where a plain == nil check misses typed nils.
func AssertPresent(dep any, name string) {
	if dep == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
	v := reflect.ValueOf(dep)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Sprintf("critical error: %s cannot be nil", name))
		}
	}
}
