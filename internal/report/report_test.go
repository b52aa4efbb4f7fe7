package report

import (
	"context"
	"strings"
	"testing"

	"github.com/vigil-agent/vigil/internal/agent"
)

func resolveUnderPlots(ref string) string { return "/api/v1/plots/" + ref }

func TestPromptFocusArea(t *testing.T) {
	t.Parallel()

	plain := Prompt("")
	if strings.Contains(plain, "Focus the analysis") {
		t.Fatal("unfocused prompt must not carry a focus clause")
	}
	focused := Prompt("pediatric cases in the south region")
	if !strings.Contains(focused, "pediatric cases in the south region") {
		t.Fatalf("focus missing: %s", focused)
	}
}

func TestArtifactRefsUniqueInOrder(t *testing.T) {
	t.Parallel()

	run := agent.Run{Steps: []agent.Step{
		{Ordinal: 1, Kind: agent.KindToolCall, Tool: "srag_plot"},
		{Ordinal: 2, Kind: agent.KindToolResult, Tool: "srag_plot", OK: true, ArtifactRef: "r/002_trend_30d.png"},
		{Ordinal: 3, Kind: agent.KindToolCall, Tool: "srag_plot"},
		{Ordinal: 4, Kind: agent.KindToolResult, Tool: "srag_plot", OK: true, ArtifactRef: "r/004_history_12m.png"},
		{Ordinal: 5, Kind: agent.KindToolResult, Tool: "srag_plot", OK: true, ArtifactRef: "r/002_trend_30d.png"},
	}}

	refs := ArtifactRefs(run)
	if len(refs) != 2 || refs[0] != "r/002_trend_30d.png" || refs[1] != "r/004_history_12m.png" {
		t.Fatalf("refs = %v", refs)
	}
}

func TestRewriteLinksReplacesMentions(t *testing.T) {
	t.Parallel()

	md := "Trend shown in r/002_trend_30d.png above."
	out := RewriteLinks(md, []string{"r/002_trend_30d.png"}, resolveUnderPlots)
	if !strings.Contains(out, "/api/v1/plots/r/002_trend_30d.png") {
		t.Fatalf("reference not rewritten: %s", out)
	}
	if strings.Contains(out, "Attachments") {
		t.Fatal("mentioned artifact must not be duplicated as an attachment")
	}
}

func TestRewriteLinksAppendsMissing(t *testing.T) {
	t.Parallel()

	out := RewriteLinks("No charts cited.", []string{"r/004_history_12m.png"}, resolveUnderPlots)
	if !strings.Contains(out, "## Attachments") {
		t.Fatalf("missing attachments section: %s", out)
	}
	if !strings.Contains(out, "![history_12m](/api/v1/plots/r/004_history_12m.png)") {
		t.Fatalf("attachment link malformed: %s", out)
	}
}

type fakeRunner struct {
	run agent.Run
	err error

	lastRequest string
}

func (f *fakeRunner) Run(_ context.Context, request string) (agent.Run, error) {
	f.lastRequest = request
	return f.run, f.err
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{run: agent.Run{
		ID:      "run-7",
		Outcome: agent.OutcomeAnswer,
		Answer:  "Cases are stable. See r/002_trend_30d.png.",
		Steps: []agent.Step{
			{Ordinal: 2, Kind: agent.KindToolResult, OK: true, ArtifactRef: "r/002_trend_30d.png"},
		},
	}}
	g := NewGenerator(fr, resolveUnderPlots)

	rep, err := g.Generate(context.Background(), "icu occupancy")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(fr.lastRequest, "icu occupancy") {
		t.Fatal("focus area not passed to the runner")
	}
	if rep.RunID != "run-7" || rep.Outcome != agent.OutcomeAnswer {
		t.Fatalf("report = %+v", rep)
	}
	if !strings.Contains(rep.Markdown, "/api/v1/plots/r/002_trend_30d.png") {
		t.Fatalf("links not rewritten: %s", rep.Markdown)
	}
	if len(rep.Artifacts) != 1 {
		t.Fatalf("artifacts = %v", rep.Artifacts)
	}
}

func TestGenerateSurfacesRunError(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{
		run: agent.Run{ID: "run-8", Outcome: agent.OutcomeBlocked, Answer: "request blocked by content policy"},
		err: agent.ErrBlocked,
	}
	g := NewGenerator(fr, resolveUnderPlots)

	rep, err := g.Generate(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for a blocked run")
	}
	if rep.Outcome != agent.OutcomeBlocked {
		t.Fatalf("outcome = %s", rep.Outcome)
	}
}
