// Package errd holds helpers for errors that are wrapped on the way out
// of a function or absorbed where they occur.
package errd

import (
	"fmt"
)

// Wrap wraps err with fmt.Errorf if err is non nil.
// Intended for use with defer and a named error return.
// Inspired by https://github.com/golang/go/issues/32676.
func Wrap(err *error, f string, v ...interface{}) {
	if *err != nil {
		*err = fmt.Errorf(f+": %w", append(v, *err)...)
	}
}

// Absorb hands a non nil err to logf prefixed with the formatted message
// and reports whether there was one. logf may be nil.
//
// It is used where a failure must not change the caller's result,
// e.g. a pong that could not be written.
func Absorb(logf func(string, ...interface{}), err error, f string, v ...interface{}) bool {
	if err == nil {
		return false
	}
	if logf != nil {
		logf(f+": %v", append(v, err)...)
	}
	return true
}
