package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/linkgraph/internal/ir"
)

// Entity builds an identified object {type, id, ...fields} with the default
// identity field names.
func Entity(typ, id string, fields ir.Object) ir.Object {
	obj := make(ir.Object, len(fields)+2)
	for k, v := range fields {
		obj[k] = v
	}
	obj[ir.DefaultTypeField] = ir.String(typ)
	obj[ir.DefaultIDField] = ir.String(id)
	return obj
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
