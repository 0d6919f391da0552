package governance

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ruleEvaluator compiles CEL expressions against a `input` dynamic map
// variable once per distinct expression and caches the program, so
// per-request evaluation only runs Eval — not Compile. Grounded on
// Mindburn-Labs-helm's CELPolicyEvaluator (cel.NewEnv + a mutex-guarded
// program cache keyed by the raw expression string).
type ruleEvaluator struct {
	env *cel.Env

	mu  sync.RWMutex
	prg map[string]cel.Program
}

func newRuleEvaluator() (*ruleEvaluator, error) {
	env, err := cel.NewEnv(cel.Variable("input", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("governance: creating cel environment: %w", err)
	}
	return &ruleEvaluator{env: env, prg: make(map[string]cel.Program)}, nil
}

// evalBool evaluates expr against input and requires a boolean result.
func (e *ruleEvaluator) evalBool(expr string, input map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{"input": input})
	if err != nil {
		return false, fmt.Errorf("governance: evaluating %q: %w", expr, err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("governance: rule %q did not evaluate to a boolean", expr)
	}
	return b, nil
}

func (e *ruleEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prg[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit := e.prg[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("governance: compiling rule %q: %w", expr, issues.Err())
	}
	prg, err := e.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("governance: building program for %q: %w", expr, err)
	}
	e.prg[expr] = prg
	return prg, nil
}
