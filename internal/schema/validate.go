package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/linkgraph/internal/engine"
	"github.com/roach88/linkgraph/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrCompile = "E200" // source does not compile

	// Schema errors (E201-E209)
	ErrInvalidTypeName   = "E201" // type name cannot form a key
	ErrEmptyKeyField     = "E202" // key lists an empty field name
	ErrDuplicateKeyField = "E203" // key lists a field twice
	ErrKeyFieldKind      = "E204" // key field declared with a non-scalar kind
	ErrReservedField     = "E205" // type field redeclared with a non-string kind

	// Data errors (E210-E219)
	ErrFieldKind = "E210" // field value does not match its declared kind
)

// ValidationError represents a schema or data validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every error found in one pass.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Check validates a compiled schema.
// Returns all errors found (does not fail-fast), ordered by type name.
func Check(s *Schema) ValidationErrors {
	var errs ValidationErrors
	typeField := s.Codec().TypeField

	for _, name := range s.TypeNames() {
		spec := s.Types[name]

		if !ir.IsKey(name+":x") || strings.Contains(name, ir.SyntheticSep) {
			errs = append(errs, ValidationError{
				Field:   "types." + name,
				Message: fmt.Sprintf("type name %q cannot form a key", name),
				Code:    ErrInvalidTypeName,
				Line:    spec.Line,
			})
		}

		seen := make(map[string]bool)
		for i, field := range spec.Key {
			path := fmt.Sprintf("types.%s.key[%d]", name, i)
			switch {
			case field == "":
				errs = append(errs, ValidationError{
					Field:   path,
					Message: "key field name is empty",
					Code:    ErrEmptyKeyField,
					Line:    spec.Line,
				})
			case seen[field]:
				errs = append(errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("duplicate key field: %q", field),
					Code:    ErrDuplicateKeyField,
					Line:    spec.Line,
				})
			}
			seen[field] = true

			if kind, ok := spec.Fields[field]; ok && !isScalarID(kind) {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("key field %q is declared %s, want string or int", field, kind),
					Code:    ErrKeyFieldKind,
					Line:    spec.Line,
				})
			}
		}

		if kind, ok := spec.Fields[typeField]; ok && kind != KindString {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("types.%s.fields.%s", name, typeField),
				Message: fmt.Sprintf("type field is declared %s, want string", kind),
				Code:    ErrReservedField,
				Line:    spec.Line,
			})
		}
	}

	return errs
}

func isScalarID(k Kind) bool {
	return k == KindString || k == KindInt || k == KindID
}

// maxWalkDepth stops the data walk on aliased input; the cache itself
// rejects such input as cyclic.
const maxWalkDepth = 256

// ValidateFields checks a field patch destined for an entity of type typ,
// plus every identified entity nested inside it.
func (s *Schema) ValidateFields(typ string, fields ir.Object) ValidationErrors {
	v := &walker{schema: s, codec: s.Codec()}
	v.object(typ, typ, fields, 0)
	return v.errs
}

type walker struct {
	schema *Schema
	codec  *ir.Codec
	errs   ValidationErrors
}

func (w *walker) object(typ, path string, obj ir.Object, depth int) {
	if depth > maxWalkDepth {
		return
	}
	spec := w.schema.Types[typ]

	for _, name := range obj.SortedKeys() {
		val := obj[name]
		fieldPath := path + "." + name
		if kind, ok := spec.Fields[name]; ok && !matches(kind, val) {
			w.errs = append(w.errs, ValidationError{
				Field:   fieldPath,
				Message: fmt.Sprintf("expected %s, got %s", kind, kindOf(val)),
				Code:    ErrFieldKind,
			})
		}
		w.value(fieldPath, val, depth+1)
	}
}

func (w *walker) value(path string, v ir.Value, depth int) {
	switch val := v.(type) {
	case ir.Object:
		if key, ok := w.codec.KeyOf(val); ok {
			w.object(ir.TypeOf(key), key, val, depth)
			return
		}
		w.object("", path, val, depth)
	case ir.Array:
		for i, elem := range val {
			w.value(fmt.Sprintf("%s[%d]", path, i), elem, depth+1)
		}
	}
}

// matches reports whether v fits kind. Null always fits; links stand in
// for objects.
func matches(kind Kind, v ir.Value) bool {
	switch v.(type) {
	case ir.Null:
		return true
	case ir.String:
		return kind == KindString || kind == KindID
	case ir.Int:
		return kind == KindInt || kind == KindID
	case ir.Bool:
		return kind == KindBool
	case ir.Array:
		return kind == KindArray
	case ir.Object, ir.Link:
		return kind == KindObject
	default:
		return false
	}
}

func kindOf(v ir.Value) string {
	switch v.(type) {
	case ir.Null:
		return "null"
	case ir.String:
		return "string"
	case ir.Int:
		return "int"
	case ir.Bool:
		return "bool"
	case ir.Array:
		return "array"
	case ir.Object:
		return "object"
	case ir.Link:
		return "link"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Middleware rejects field patches that do not match the declared kinds.
// Updater functions pass through unchecked.
func (s *Schema) Middleware() engine.Middleware {
	return func(next engine.MutateFunc, key string, data engine.Data, opts engine.MutateOptions) (string, error) {
		fields, ok := data.(engine.Fields)
		if !ok {
			return next(key, data, opts)
		}
		if errs := s.ValidateFields(ir.TypeOf(key), ir.Object(fields)); len(errs) > 0 {
			return "", fmt.Errorf("mutate %s: %w", key, errs)
		}
		return next(key, data, opts)
	}
}

// Options returns the engine options implied by the schema.
func (s *Schema) Options() []engine.Option {
	opts := []engine.Option{
		engine.WithCodec(s.Codec()),
		engine.WithMiddleware(s.Middleware()),
	}
	if s.MaxNotifyDepth > 0 {
		opts = append(opts, engine.WithMaxNotifyDepth(s.MaxNotifyDepth))
	}
	return opts
}
