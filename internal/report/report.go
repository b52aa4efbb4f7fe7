// Package report turns one agent run into an executive surveillance report:
// it phrases the request, collects the run's chart artifacts, and rewrites
// the answer so every artifact is reachable offline through the gateway's
// plot endpoint.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vigil-agent/vigil/internal/agent"
)

// Runner executes one request end to end. *agent.Loop implements it.
type Runner interface {
	Run(ctx context.Context, request string) (agent.Run, error)
}

// Resolver maps an artifact reference to a URL a report reader can open.
type Resolver func(ref string) string

// Report is the rendered deliverable.
type Report struct {
	RunID       string        `json:"run_id"`
	Markdown    string        `json:"markdown"`
	Artifacts   []string      `json:"artifacts,omitempty"`
	Outcome     agent.Outcome `json:"outcome"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Generator produces reports through an injected runner.
type Generator struct {
	runner  Runner
	resolve Resolver
}

// NewGenerator wires a runner and an artifact resolver.
func NewGenerator(runner Runner, resolve Resolver) *Generator {
	return &Generator{runner: runner, resolve: resolve}
}

// basePrompt is the standing executive-report request.
const basePrompt = `Produce an executive report on the current SRAG (severe acute respiratory illness) situation.
Include: total and recent case counts, the 30-day trend, the 12-month history, and any relevant public guidance.
Use the available tools for every number you cite and reference the charts you render.`

// Prompt phrases the report request, narrowing it to a focus area when one
// is given.
func Prompt(focus string) string {
	if focus = strings.TrimSpace(focus); focus != "" {
		return basePrompt + fmt.Sprintf("\nFocus the analysis on: %s.", focus)
	}
	return basePrompt
}

// Generate runs the agent and renders the deliverable. A run that ends in
// a non-answer outcome is returned alongside the error so callers can still
// inspect its trace.
func (g *Generator) Generate(ctx context.Context, focus string) (Report, error) {
	run, err := g.runner.Run(ctx, Prompt(focus))
	rep := Report{
		RunID:       run.ID,
		Outcome:     run.Outcome,
		Artifacts:   ArtifactRefs(run),
		GeneratedAt: time.Now().UTC(),
	}
	if err != nil {
		rep.Markdown = run.Answer
		return rep, err
	}
	rep.Markdown = RewriteLinks(run.Answer, rep.Artifacts, g.resolve)
	return rep, nil
}

// ArtifactRefs extracts the unique artifact references from a run's trace,
// in step order.
func ArtifactRefs(run agent.Run) []string {
	var refs []string
	seen := make(map[string]struct{})
	for _, s := range run.Steps {
		if s.Kind != agent.KindToolResult || s.ArtifactRef == "" {
			continue
		}
		if _, dup := seen[s.ArtifactRef]; dup {
			continue
		}
		seen[s.ArtifactRef] = struct{}{}
		refs = append(refs, s.ArtifactRef)
	}
	return refs
}

// RewriteLinks replaces raw artifact references in the markdown with
// resolved image links, and appends an attachments section for any artifact
// the answer never mentioned, so no rendered chart is lost.
func RewriteLinks(markdown string, refs []string, resolve Resolver) string {
	out := markdown
	var missing []string
	for _, ref := range refs {
		if strings.Contains(out, ref) {
			out = strings.ReplaceAll(out, ref, resolve(ref))
		} else {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		var b strings.Builder
		b.WriteString(out)
		b.WriteString("\n\n## Attachments\n")
		for _, ref := range missing {
			fmt.Fprintf(&b, "\n![%s](%s)\n", chartName(ref), resolve(ref))
		}
		out = b.String()
	}
	return out
}

// chartName derives a readable label from a reference like
// "run-id/003_trend_30d.png".
func chartName(ref string) string {
	base := ref
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".png")
	if i := strings.IndexByte(base, '_'); i >= 0 {
		base = base[i+1:]
	}
	return base
}
