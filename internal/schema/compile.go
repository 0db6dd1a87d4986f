package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Compile parses a CUE value into a Schema.
// Uses the CUE SDK's Go API directly.
//
// The value is the root of a schema file:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`types: User: key: "id"`)
//	s, err := Compile(v)
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{Types: make(map[string]TypeSpec)}

	if tf := v.LookupPath(cue.ParsePath("type_field")); tf.Exists() {
		name, err := tf.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		s.TypeField = name
	}

	if d := v.LookupPath(cue.ParsePath("max_notify_depth")); d.Exists() {
		depth, err := d.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if depth <= 0 {
			return nil, &CompileError{
				Field:   "max_notify_depth",
				Message: "must be positive",
				Pos:     d.Pos(),
			}
		}
		s.MaxNotifyDepth = int(depth)
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return nil, &CompileError{
			Field:   "types",
			Message: "types is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		spec, err := parseType(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		s.Types[spec.Name] = spec
	}

	return s, nil
}

// CompileString compiles CUE source text. filename is used in positions.
func CompileString(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src, cue.Filename(filename)))
}

// LoadFile reads, compiles and checks a schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	s, err := CompileString(string(data), path)
	if err != nil {
		return nil, err
	}
	if errs := Check(s); len(errs) > 0 {
		return nil, errs
	}
	return s, nil
}

func parseType(name string, v cue.Value) (TypeSpec, error) {
	spec := TypeSpec{Name: name, Line: v.Pos().Line()}

	if keyVal := v.LookupPath(cue.ParsePath("key")); keyVal.Exists() {
		key, err := parseKey(keyVal)
		if err != nil {
			return spec, err
		}
		spec.Key = key
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return spec, nil
	}

	fieldIter, err := fieldsVal.Fields()
	if err != nil {
		return spec, formatCUEError(err)
	}
	spec.Fields = make(map[string]Kind)
	for fieldIter.Next() {
		kind, err := extractKind(fieldIter.Value())
		if err != nil {
			return spec, err
		}
		spec.Fields[fieldIter.Label()] = kind
	}

	return spec, nil
}

// parseKey accepts a single field name or a list of field names.
func parseKey(v cue.Value) ([]string, error) {
	if v.IncompleteKind() == cue.StringKind {
		name, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return []string{name}, nil
	}

	list, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "key",
			Message: "key must be a field name or a list of field names",
			Pos:     v.Pos(),
		}
	}

	var key []string
	for list.Next() {
		name, err := list.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		key = append(key, name)
	}
	return key, nil
}

// extractKind converts a CUE type to a field kind.
// A null branch is ignored since any field may be cleared.
// Floats are forbidden.
func extractKind(v cue.Value) (Kind, error) {
	switch v.IncompleteKind() &^ cue.NullKind {
	case cue.StringKind:
		return KindString, nil
	case cue.IntKind:
		return KindInt, nil
	case cue.StringKind | cue.IntKind:
		return KindID, nil
	case cue.BoolKind:
		return KindBool, nil
	case cue.ListKind:
		return KindArray, nil
	case cue.StructKind:
		return KindObject, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   "type",
			Message: "float types are forbidden, use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError is a schema error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
