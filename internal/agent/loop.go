package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vigil-agent/vigil/internal/guardrail"
	"github.com/vigil-agent/vigil/internal/oracle"
	"github.com/vigil-agent/vigil/internal/tool"
)

// Sentinel errors for loop termination.
var (
	ErrBlocked            = errors.New("agent: run blocked by policy")
	ErrStepBudgetExceeded = errors.New("agent: step budget exceeded")
)

// Loop is the guarded ReAct controller. It alternates between asking the
// oracle for the next action and acting on it through the dispatcher,
// screening the request on the way in and the answer on the way out.
type Loop struct {
	oracle       oracle.Oracle
	dispatcher   *tool.Dispatcher
	registry     *tool.Registry
	guards       *guardrail.Pipeline
	sink         TraceSink
	logger       *slog.Logger
	systemPrompt string
	config       LoopConfig
}

// LoopDeps assembles a Loop. Sink and Logger may be nil.
type LoopDeps struct {
	Oracle       oracle.Oracle
	Dispatcher   *tool.Dispatcher
	Registry     *tool.Registry
	Guards       *guardrail.Pipeline
	Sink         TraceSink
	Logger       *slog.Logger
	SystemPrompt string
	Config       LoopConfig
}

// NewLoop creates a Loop with the given dependencies and config.
func NewLoop(deps LoopDeps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		oracle:       deps.Oracle,
		dispatcher:   deps.Dispatcher,
		registry:     deps.Registry,
		guards:       deps.Guards,
		sink:         deps.Sink,
		logger:       logger,
		systemPrompt: deps.SystemPrompt,
		config:       deps.Config.withDefaults(),
	}
}

// Run executes one request to termination. The returned Run is sealed: it
// carries the full trace and exactly one terminal outcome. The error mirrors
// non-answer outcomes so callers can branch with errors.Is.
func (l *Loop) Run(ctx context.Context, request string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Request:   request,
		StartedAt: time.Now().UTC(),
	}
	logger := l.logger.With("run_id", run.ID)

	// Input screening happens before any oracle involvement.
	if verdict := l.guards.Evaluate(guardrail.Content{
		Mode: guardrail.ModeInput,
		Text: request,
	}); !verdict.Passed {
		logger.Warn("request blocked on input", "rule", verdict.Violation.Rule)
		l.append(&run, Step{Kind: KindFinalAnswer, Answer: verdict.Message()})
		l.seal(&run, OutcomeBlocked, verdict.Message())
		return run, ErrBlocked
	}

	freeRetries := 0
	for cycles := 0; cycles < l.config.MaxSteps; cycles++ {
		if err := ctx.Err(); err != nil {
			l.seal(&run, OutcomeFailed, "request cancelled")
			return run, err
		}

		action, err := l.decide(ctx, &run)
		if err != nil {
			logger.Error("oracle decision failed", "error", err)
			l.seal(&run, OutcomeFailed, "the assistant could not complete this request")
			return run, fmt.Errorf("%w: %w", oracle.ErrDecisionFailed, err)
		}

		if action.Thought != "" {
			l.append(&run, Step{Kind: KindThought, Thought: action.Thought})
		}

		switch action.Kind {
		case oracle.ActionFinalAnswer:
			if verdict := l.guards.Evaluate(guardrail.Content{
				Mode: guardrail.ModeOutput,
				Text: action.Answer,
			}); !verdict.Passed {
				logger.Warn("answer blocked on output", "rule", verdict.Violation.Rule)
				l.append(&run, Step{Kind: KindFinalAnswer, Answer: verdict.Message()})
				l.seal(&run, OutcomeBlocked, verdict.Message())
				return run, ErrBlocked
			}
			l.append(&run, Step{Kind: KindFinalAnswer, Answer: action.Answer})
			l.seal(&run, OutcomeAnswer, action.Answer)
			return run, nil

		case oracle.ActionToolCall:
			res, terminalErr := l.act(ctx, &run, action, logger)
			if terminalErr != nil {
				return run, terminalErr
			}
			if !res.OK && res.Err.Retriable() &&
				l.config.ExemptToolErrorsFromBudget &&
				freeRetries < l.config.ToolErrorRetryQuota {
				freeRetries++
				cycles--
			}

		default:
			logger.Error("oracle returned unexpected action", "kind", action.Kind)
			l.seal(&run, OutcomeFailed, "the assistant could not complete this request")
			return run, oracle.ErrMalformedAction
		}
	}

	logger.Warn("step budget exhausted", "max_steps", l.config.MaxSteps)
	l.seal(&run, OutcomeExhausted, "the assistant ran out of steps before reaching an answer")
	return run, ErrStepBudgetExceeded
}

// decide asks the oracle for the next action under its own timeout.
func (l *Loop) decide(ctx context.Context, run *Run) (oracle.Action, error) {
	state := oracle.State{
		Request:      run.Request,
		SystemPrompt: l.systemPrompt,
		History:      historyFromSteps(run.Steps),
		Tools:        l.registry.Definitions(),
	}

	var lastErr error
	for attempt := 0; attempt <= l.config.OracleRetries; attempt++ {
		dctx, cancel := context.WithTimeout(ctx, l.config.OracleTimeout)
		action, err := l.oracle.Decide(dctx, state)
		cancel()
		if err == nil {
			return action, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", oracle.ErrTimeout, err)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return oracle.Action{}, lastErr
}

// act dispatches one proposed tool call and appends the ToolCall/ToolResult
// step pair. A non-nil error means the Run was sealed and the loop must stop.
func (l *Loop) act(ctx context.Context, run *Run, action oracle.Action, logger *slog.Logger) (tool.Result, error) {
	callStep := l.append(run, Step{
		Kind: KindToolCall,
		Tool: action.Tool,
		Args: action.Args,
	})

	res := l.dispatcher.Dispatch(ctx, tool.Call{
		Tool: action.Tool,
		Args: action.Args,
		Step: callStep.Ordinal,
	}, tool.ExecContext{
		RunID:  run.ID,
		Step:   callStep.Ordinal,
		Logger: logger.With("tool", action.Tool),
	})

	result := Step{
		Kind:        KindToolResult,
		Tool:        action.Tool,
		OK:          res.OK,
		Observation: res.Observation(),
		Duration:    res.Duration,
	}
	if res.OK {
		result.ArtifactRef = res.Output.ArtifactRef
	} else {
		result.ErrKind = string(res.Err.Kind)
	}
	l.append(run, result)

	if res.OK {
		return res, nil
	}

	switch res.Err.Kind {
	case tool.KindGuardrailBlocked, tool.KindUnsafeQuery:
		logger.Warn("tool call blocked", "tool", action.Tool, "kind", res.Err.Kind)
		l.seal(run, OutcomeBlocked, "request blocked by content policy")
		return res, ErrBlocked
	case tool.KindUnknownTool, tool.KindInvalidArguments:
		logger.Error("tool contract mismatch", "tool", action.Tool, "kind", res.Err.Kind)
		l.seal(run, OutcomeFailed, "the assistant could not complete this request")
		return res, res.Err
	default:
		// Transient fault. The observation is already in the trace; the
		// oracle sees it next cycle and decides whether to retry or adapt.
		logger.Warn("tool execution failed", "tool", action.Tool, "error", res.Err.Msg)
		return res, nil
	}
}

// append assigns the next ordinal, records the step in the trace, and
// forwards it to the sink before any further transition.
func (l *Loop) append(run *Run, step Step) Step {
	step.Ordinal = len(run.Steps) + 1
	step.Timestamp = time.Now().UTC()
	run.Steps = append(run.Steps, step)
	if l.sink != nil {
		l.sink.Record(run.ID, step)
	}
	return step
}

// seal fixes the Run's terminal outcome and user-facing answer text.
func (l *Loop) seal(run *Run, outcome Outcome, answer string) {
	run.Outcome = outcome
	run.Answer = answer
	run.EndedAt = time.Now().UTC()
}

// historyFromSteps renders the trace as a conversation for the oracle.
func historyFromSteps(steps []Step) []oracle.Exchange {
	history := make([]oracle.Exchange, 0, len(steps))
	for _, s := range steps {
		switch s.Kind {
		case KindThought:
			history = append(history, oracle.Exchange{
				Role:    oracle.RoleAssistant,
				Content: s.Thought,
			})
		case KindToolCall:
			history = append(history, oracle.Exchange{
				Role:    oracle.RoleAssistant,
				Content: fmt.Sprintf("calling tool %s with arguments %s", s.Tool, s.Args),
				Tool:    s.Tool,
			})
		case KindToolResult:
			history = append(history, oracle.Exchange{
				Role:    oracle.RoleTool,
				Content: s.Observation,
				Tool:    s.Tool,
			})
		}
	}
	return history
}
