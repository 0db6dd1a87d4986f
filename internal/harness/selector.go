package harness

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"

	"github.com/roach88/linkgraph/internal/engine"
	"github.com/roach88/linkgraph/internal/ir"
)

// CompileSelector compiles an expr-lang expression into a subscription
// selector. The expression sees the resolved value as `value`, with links
// rendered as their key strings. A value the expression cannot evaluate, or
// a result that is not representable, selects null.
//
//	sel, _ := CompileSelector(`value?.name`)
func CompileSelector(expression string) (engine.Selector, error) {
	if expression == "" {
		return nil, fmt.Errorf("selector must not be empty")
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", expression, err)
	}

	return func(v ir.Value) ir.Value {
		out, err := exprlang.Run(program, map[string]any{"value": ir.ToAny(v)})
		if err != nil {
			return ir.Null{}
		}
		selected, err := ir.FromAny(out)
		if err != nil {
			return ir.Null{}
		}
		return selected
	}, nil
}
