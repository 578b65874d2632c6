// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema and
// decodes them into Go values.
package cueutil

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// ErrFileTooLarge is returned when the document exceeds the size limit.
var ErrFileTooLarge = errors.New("CUE document exceeds size limit")

// Result holds the decoded value and the unified CUE value it came from.
type Result[T any] struct {
	Value   *T
	Unified cue.Value
}

// ParseAndDecode compiles data, unifies it with the definition defPath of
// schema, validates the result and decodes it into T.
func ParseAndDecode[T any](schema, data []byte, defPath string, opts ...Option) (*Result[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if int64(len(data)) > o.maxFileSize {
		name := o.filename
		if name == "" {
			name = "input"
		}
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, name, len(data), o.maxFileSize)
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileBytes(schema)
	if err := schemaValue.Err(); err != nil {
		return nil, fmt.Errorf("internal error: schema does not compile: %w", err)
	}
	def := schemaValue.LookupPath(cue.ParsePath(defPath))
	if !def.Exists() {
		return nil, fmt.Errorf("internal error: schema has no %s", defPath)
	}

	var compileOpts []cue.BuildOption
	if o.filename != "" {
		compileOpts = append(compileOpts, cue.Filename(o.filename))
	}
	userValue := ctx.CompileBytes(data, compileOpts...)
	if err := userValue.Err(); err != nil {
		return nil, FormatError(err)
	}

	unified := def.Unify(userValue)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return nil, FormatError(err)
	}

	var value T
	if err := unified.Decode(&value); err != nil {
		return nil, FormatError(err)
	}
	return &Result[T]{Value: &value, Unified: unified}, nil
}

// ParseAndDecodeString is ParseAndDecode for string inputs.
func ParseAndDecodeString[T any](schema, data, defPath string, opts ...Option) (*Result[T], error) {
	return ParseAndDecode[T]([]byte(schema), []byte(data), defPath, opts...)
}

// FormatError flattens CUE's multi-error into one message per line with
// positions.
func FormatError(err error) error {
	return fmt.Errorf("%s", strings.TrimSpace(cueerrors.Details(err, nil)))
}
