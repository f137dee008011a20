// Package cmp wraps go-cmp with the options used across the tests.
package cmp

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func opts() []cmp.Option {
	return []cmp.Option{
		cmpopts.EquateErrors(),
		cmpopts.EquateEmpty(),
		cmp.Exporter(func(r reflect.Type) bool {
			return true
		}),
	}
}

// Equal checks if v1 and v2 are equal with go-cmp.
// nil and empty slices are equal.
func Equal(v1, v2 interface{}) bool {
	return cmp.Equal(v1, v2, opts()...)
}

// Diff returns a human readable diff between v1 and v2
func Diff(v1, v2 interface{}) string {
	return cmp.Diff(v1, v2, opts()...)
}
