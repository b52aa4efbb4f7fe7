package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vigil-agent/vigil/internal/guardrail"
	"github.com/vigil-agent/vigil/internal/sqlguard"
)

// DefaultExecTimeout bounds a single handler invocation.
const DefaultExecTimeout = 30 * time.Second

// Call is one tool invocation request produced by the orchestration loop
// from the oracle's proposed action.
type Call struct {
	Tool string
	Args json.RawMessage
	Step int
}

// Result is the outcome of one dispatch. Exactly one of Output and Err is
// meaningful: Err is nil on success. Results are never mutated after
// creation.
type Result struct {
	OK       bool
	Output   Output
	Err      *Error
	Duration time.Duration
}

// Observation returns the text to feed back to the oracle for this result.
func (r Result) Observation() string {
	if r.OK {
		return r.Output.Observation
	}
	return "tool failed: " + r.Err.Msg
}

// DispatcherConfig assembles a Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Guards   *guardrail.Pipeline

	// SQLValidator gates the query argument of SQLTool before its handler
	// runs. Both fields must be set together.
	SQLValidator *sqlguard.Validator
	SQLTool      string
	SQLParam     string

	// ExecTimeout bounds each handler invocation. Zero means
	// DefaultExecTimeout.
	ExecTimeout time.Duration
}

// Dispatcher routes a Call through the full gate sequence: registry lookup,
// argument validation, guardrail screening, SQL firewall, then the handler
// under a bounded timeout. Raw handler faults never escape; they are
// classified into *Error.
type Dispatcher struct {
	registry     *Registry
	guards       *guardrail.Pipeline
	sqlValidator *sqlguard.Validator
	sqlTool      string
	sqlParam     string
	execTimeout  time.Duration
}

// NewDispatcher creates a Dispatcher from the given configuration.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	timeout := cfg.ExecTimeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return &Dispatcher{
		registry:     cfg.Registry,
		guards:       cfg.Guards,
		sqlValidator: cfg.SQLValidator,
		sqlTool:      cfg.SQLTool,
		sqlParam:     cfg.SQLParam,
		execTimeout:  timeout,
	}
}

// Dispatch executes one call. The returned Result always carries either a
// successful Output or a classified Error; panics and raw faults from the
// handler are converted, never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call, env ExecContext) Result {
	start := time.Now()
	res := d.dispatch(ctx, call, env)
	res.Duration = time.Since(start)
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, call Call, env ExecContext) Result {
	t, ok := d.registry.Get(call.Tool)
	if !ok {
		return failure(KindUnknownTool, fmt.Sprintf("no tool named %q", call.Tool), nil)
	}

	if err := validateArgs(t.Params(), call.Args); err != nil {
		return failure(KindInvalidArguments, err.Error(), err)
	}

	verdict := d.guards.Evaluate(guardrail.Content{
		Mode: guardrail.ModeParameters,
		Tool: call.Tool,
		Args: call.Args,
	})
	if !verdict.Passed {
		return failure(KindGuardrailBlocked, verdict.Message(), nil)
	}

	if d.sqlValidator != nil && call.Tool == d.sqlTool {
		query, err := stringArg(call.Args, d.sqlParam)
		if err != nil {
			return failure(KindInvalidArguments, err.Error(), err)
		}
		if err := d.sqlValidator.Validate(query); err != nil {
			var unsafe *sqlguard.UnsafeQueryError
			if errors.As(err, &unsafe) {
				return failure(KindUnsafeQuery, unsafe.Error(), unsafe)
			}
			return failure(KindUnsafeQuery, "query rejected", err)
		}
	}

	out, err := d.execute(ctx, t, call.Args, env)
	if err != nil {
		var classified *Error
		if errors.As(err, &classified) {
			return Result{Err: classified}
		}
		return failure(KindExecution, err.Error(), err)
	}
	return Result{OK: true, Output: out}
}

// execute runs the handler under the dispatcher's timeout, converting
// panics and deadline hits into errors.
func (d *Dispatcher) execute(ctx context.Context, t Tool, args json.RawMessage, env ExecContext) (out Output, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.execTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = NewError(KindExecution, fmt.Sprintf("handler panic: %v", r), nil)
		}
	}()

	out, err = t.Execute(ctx, args, env)
	if err != nil && ctx.Err() != nil {
		return Output{}, NewError(KindExecution, "execution timed out", ctx.Err())
	}
	return out, err
}

func failure(kind ErrKind, msg string, cause error) Result {
	return Result{Err: NewError(kind, msg, cause)}
}

// stringArg extracts one string field from raw JSON arguments.
func stringArg(args json.RawMessage, name string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return "", fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("parameter %q: expected string", name)
	}
	return s, nil
}
