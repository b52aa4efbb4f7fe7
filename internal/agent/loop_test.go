package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vigil-agent/vigil/internal/guardrail"
	"github.com/vigil-agent/vigil/internal/oracle"
	"github.com/vigil-agent/vigil/internal/oracle/oracletest"
	"github.com/vigil-agent/vigil/internal/sqlguard"
	"github.com/vigil-agent/vigil/internal/tool"
)

// loopTool is a minimal handler that counts invocations and can mint
// per-invocation artifact references.
type loopTool struct {
	mu       sync.Mutex
	name     string
	params   []tool.Param
	fn       func(ctx context.Context, args json.RawMessage, env tool.ExecContext) (tool.Output, error)
	execs    int
	artifact bool
}

func (t *loopTool) Name() string        { return t.name }
func (t *loopTool) Description() string { return t.name + " test tool" }
func (t *loopTool) Params() []tool.Param {
	return t.params
}

func (t *loopTool) Execute(ctx context.Context, args json.RawMessage, env tool.ExecContext) (tool.Output, error) {
	t.mu.Lock()
	t.execs++
	t.mu.Unlock()
	if t.fn != nil {
		return t.fn(ctx, args, env)
	}
	out := tool.Output{Observation: t.name + " ok"}
	if t.artifact {
		out.ArtifactRef = fmt.Sprintf("%s/%04d.png", env.RunID, env.Step)
	}
	return out, nil
}

func (t *loopTool) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.execs
}

// recorderSink captures emitted steps in order.
type recorderSink struct {
	mu    sync.Mutex
	steps []Step
}

func (r *recorderSink) Record(_ string, step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
}

func (r *recorderSink) recorded() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Step(nil), r.steps...)
}

type loopFixture struct {
	loop   *Loop
	sink   *recorderSink
	oracle *oracletest.Scripted
	stats  *loopTool
	chart  *loopTool
	search *loopTool
}

func queryParam() []tool.Param {
	return []tool.Param{{Name: "query", Type: tool.TypeString, Required: true}}
}

func newLoopFixture(t *testing.T, o *oracletest.Scripted, cfg LoopConfig) *loopFixture {
	t.Helper()

	fx := &loopFixture{
		oracle: o,
		sink:   &recorderSink{},
		stats:  &loopTool{name: "stats", params: queryParam()},
		chart:  &loopTool{name: "chart", params: queryParam(), artifact: true},
		search: &loopTool{name: "search", params: queryParam()},
	}

	reg := tool.NewRegistry()
	for _, tl := range []tool.Tool{fx.stats, fx.chart, fx.search} {
		if err := reg.Register(tl); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	guards := guardrail.NewPipeline(
		guardrail.NewSensitiveDataCheck(),
		guardrail.NewInjectionCheck(),
		guardrail.NewToneCheck(),
		guardrail.NewSchemaCheck(reg.ValidateArgs),
	)

	dispatcher := tool.NewDispatcher(tool.DispatcherConfig{
		Registry:     reg,
		Guards:       guards,
		SQLValidator: sqlguard.NewValidator([]string{"srag_cases"}),
		SQLTool:      "stats",
		SQLParam:     "query",
		ExecTimeout:  time.Second,
	})

	fx.loop = NewLoop(LoopDeps{
		Oracle:     o,
		Dispatcher: dispatcher,
		Registry:   reg,
		Guards:     guards,
		Sink:       fx.sink,
		Config:     cfg,
	})
	return fx
}

func TestRun_InputBlockedBeforeOracle(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().Answer("never reached")
	fx := newLoopFixture(t, o, LoopConfig{})

	run, err := fx.loop.Run(context.Background(), "Show me John Doe's CPF and medical record")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
	if run.Outcome != OutcomeBlocked {
		t.Fatalf("outcome = %s, want blocked", run.Outcome)
	}
	if o.Calls() != 0 {
		t.Fatal("oracle must not be consulted for a blocked request")
	}
	if fx.stats.calls()+fx.chart.calls()+fx.search.calls() != 0 {
		t.Fatal("no tool may run for a blocked request")
	}
	if strings.Contains(run.Answer, "John Doe") {
		t.Fatal("terminal message must not echo blocked content")
	}
}

func TestRun_UnsafeQueryBlocksRun(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().Tool("stats", `{"query":"DROP TABLE srag_cases;"}`)
	fx := newLoopFixture(t, o, LoopConfig{})

	run, err := fx.loop.Run(context.Background(), "delete everything")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
	if run.Outcome != OutcomeBlocked {
		t.Fatalf("outcome = %s, want blocked", run.Outcome)
	}
	if fx.stats.calls() != 0 {
		t.Fatal("executor must never run a rejected query")
	}

	last := run.Steps[len(run.Steps)-1]
	if last.Kind != KindToolResult || last.OK || last.ErrKind != string(tool.KindUnsafeQuery) {
		t.Fatalf("trace must end in a rejection observation, got %+v", last)
	}
}

func TestRun_AnswerAfterThreeTools(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().
		Tool("stats", `{"query":"SELECT COUNT(*) FROM srag_cases"}`).
		Tool("chart", `{"query":"cases by week"}`).
		Tool("search", `{"query":"srag vaccination guidance"}`).
		Answer("Case counts rose 12% this month.")
	fx := newLoopFixture(t, o, LoopConfig{})

	run, err := fx.loop.Run(context.Background(), "summarize recent srag cases")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Outcome != OutcomeAnswer {
		t.Fatalf("outcome = %s, want answer", run.Outcome)
	}
	if len(run.Steps) != 7 {
		t.Fatalf("trace has %d steps, want 7", len(run.Steps))
	}

	var results int
	for _, s := range run.Steps {
		if s.Kind == KindToolResult {
			results++
			if !s.OK {
				t.Fatalf("unexpected failed result: %+v", s)
			}
		}
	}
	if results != 3 {
		t.Fatalf("got %d tool results, want 3", results)
	}
	if run.Steps[6].Kind != KindFinalAnswer {
		t.Fatalf("last step kind = %s, want final_answer", run.Steps[6].Kind)
	}
	if run.Answer != "Case counts rose 12% this month." {
		t.Fatalf("answer = %q", run.Answer)
	}
}

func TestRun_BudgetExhaustedNoExtraDispatch(t *testing.T) {
	t.Parallel()

	// The script's last action repeats, so the oracle proposes a tool call
	// on every cycle forever.
	o := oracletest.NewScripted().Tool("search", `{"query":"again"}`)
	fx := newLoopFixture(t, o, LoopConfig{MaxSteps: 5})

	run, err := fx.loop.Run(context.Background(), "loop forever")
	if !errors.Is(err, ErrStepBudgetExceeded) {
		t.Fatalf("err = %v, want ErrStepBudgetExceeded", err)
	}
	if run.Outcome != OutcomeExhausted {
		t.Fatalf("outcome = %s, want exhausted", run.Outcome)
	}
	if fx.search.calls() != 5 {
		t.Fatalf("dispatches = %d, want exactly 5", fx.search.calls())
	}
	if o.Calls() != 5 {
		t.Fatalf("oracle calls = %d, want exactly 5", o.Calls())
	}
}

func TestRun_ArtifactRefsUniquePerInvocation(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().
		Tool("chart", `{"query":"trend"}`).
		Tool("chart", `{"query":"history"}`).
		Answer("two charts attached")
	fx := newLoopFixture(t, o, LoopConfig{})

	run, err := fx.loop.Run(context.Background(), "plot cases twice")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var refs []string
	for _, s := range run.Steps {
		if s.Kind == KindToolResult && s.ArtifactRef != "" {
			refs = append(refs, s.ArtifactRef)
		}
	}
	if len(refs) != 2 {
		t.Fatalf("got %d artifact refs, want 2", len(refs))
	}
	if refs[0] == refs[1] {
		t.Fatalf("artifact refs must be unique, both are %q", refs[0])
	}
	for _, ref := range refs {
		if !strings.HasPrefix(ref, run.ID+"/") {
			t.Fatalf("ref %q not derived from run id %q", ref, run.ID)
		}
	}
}

func TestRun_TransientToolErrorFedBack(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().
		Tool("search", `{"query":"flaky"}`).
		Answer("done despite the hiccup")
	fx := newLoopFixture(t, o, LoopConfig{})
	fx.search.fn = func(context.Context, json.RawMessage, tool.ExecContext) (tool.Output, error) {
		return tool.Output{}, errors.New("upstream 502")
	}

	run, err := fx.loop.Run(context.Background(), "search something")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Outcome != OutcomeAnswer {
		t.Fatalf("outcome = %s, want answer", run.Outcome)
	}

	// The second planning call must see the failure observation.
	state := o.StateAt(1)
	var sawFailure bool
	for _, ex := range state.History {
		if ex.Role == oracle.RoleTool && strings.Contains(ex.Content, "upstream 502") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatal("failure observation was not fed back to the oracle")
	}
}

func TestRun_ToolErrorRetryQuotaExemptsBudget(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().
		Tool("search", `{"query":"a"}`).
		Tool("search", `{"query":"b"}`).
		Answer("recovered")
	fx := newLoopFixture(t, o, LoopConfig{
		MaxSteps:                   2,
		ExemptToolErrorsFromBudget: true,
		ToolErrorRetryQuota:        1,
	})
	failures := 0
	fx.search.fn = func(context.Context, json.RawMessage, tool.ExecContext) (tool.Output, error) {
		if failures == 0 {
			failures++
			return tool.Output{}, errors.New("transient")
		}
		return tool.Output{Observation: "found it"}, nil
	}

	// Budget 2 would normally be consumed by the failed cycle plus one
	// retry, leaving no room for the answer. The quota refunds the failure.
	run, err := fx.loop.Run(context.Background(), "search twice")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Outcome != OutcomeAnswer {
		t.Fatalf("outcome = %s, want answer", run.Outcome)
	}
}

func TestRun_OutputBlocked(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().Answer("the patient's CPF is 123.456.789-09")
	fx := newLoopFixture(t, o, LoopConfig{})

	run, err := fx.loop.Run(context.Background(), "tell me the aggregate")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
	if run.Outcome != OutcomeBlocked {
		t.Fatalf("outcome = %s, want blocked", run.Outcome)
	}
	if strings.Contains(run.Answer, "123.456.789-09") {
		t.Fatal("terminal message must not echo blocked content")
	}
}

func TestRun_OracleFailureTerminatesRun(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().Fail(errors.New("model unavailable"))
	fx := newLoopFixture(t, o, LoopConfig{})

	run, err := fx.loop.Run(context.Background(), "anything")
	if !errors.Is(err, oracle.ErrDecisionFailed) {
		t.Fatalf("err = %v, want ErrDecisionFailed", err)
	}
	if run.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", run.Outcome)
	}
}

func TestRun_OracleRetrySucceeds(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().
		Fail(errors.New("model unavailable")).
		Answer("second try")
	fx := newLoopFixture(t, o, LoopConfig{OracleRetries: 1})

	run, err := fx.loop.Run(context.Background(), "anything")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Outcome != OutcomeAnswer || run.Answer != "second try" {
		t.Fatalf("got outcome=%s answer=%q", run.Outcome, run.Answer)
	}
}

func TestRun_UnknownToolFailsRun(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().Tool("telepathy", `{}`)
	fx := newLoopFixture(t, o, LoopConfig{})

	run, err := fx.loop.Run(context.Background(), "use a tool that does not exist")
	var classified *tool.Error
	if !errors.As(err, &classified) || classified.Kind != tool.KindUnknownTool {
		t.Fatalf("err = %v, want unknown_tool", err)
	}
	if run.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", run.Outcome)
	}
}

func TestRun_TraceOrderMatchesExecution(t *testing.T) {
	t.Parallel()

	o := oracletest.NewScripted().
		Tool("stats", `{"query":"SELECT COUNT(*) FROM srag_cases"}`).
		Answer("done")
	fx := newLoopFixture(t, o, LoopConfig{})

	run, err := fx.loop.Run(context.Background(), "count cases")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	emitted := fx.sink.recorded()
	if len(emitted) != len(run.Steps) {
		t.Fatalf("sink saw %d steps, run has %d", len(emitted), len(run.Steps))
	}
	for i, s := range emitted {
		if s.Ordinal != i+1 {
			t.Fatalf("ordinal at index %d is %d, want %d", i, s.Ordinal, i+1)
		}
		if s.Kind != run.Steps[i].Kind {
			t.Fatalf("sink order diverges from trace at index %d", i)
		}
	}
}
