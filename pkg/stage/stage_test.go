package stage

import (
	"context"
	"testing"

	"github.com/lonestarx1/gogrid/pkg/outcome"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
)

func freshCtx() pipectx.Context {
	return pipectx.Initial("agent-a", "trace-1", "conv-1")
}

// TestPipelineOfPureStages checks that a pipeline of two pure stages,
// "+1" then "*2", executed on 5 yields Success(12) with stepIndex = 2 and
// two StageLog entries.
func TestPipelineOfPureStages(t *testing.T) {
	plusOne := Map("+1", func(n int) int { return n + 1 })
	timesTwo := Map("*2", func(n int) int { return n * 2 })
	pipeline := Then(plusOne, timesTwo)

	out := pipeline.Execute(context.Background(), 5, freshCtx())

	if !out.IsSuccess() {
		t.Fatalf("pipeline result = %v, want Success", out.Variant())
	}
	if out.Value() != 12 {
		t.Fatalf("pipeline value = %d, want 12", out.Value())
	}
	ctx := out.Context()
	if ctx.StepIndex != 2 {
		t.Fatalf("stepIndex = %d, want 2", ctx.StepIndex)
	}
	if len(ctx.StepLogs) != 2 {
		t.Fatalf("len(stepLogs) = %d, want 2", len(ctx.StepLogs))
	}
}

// TestShortCircuitOnFailure checks that a failing stage composed with a
// counting stage must never invoke the second stage.
func TestShortCircuitOnFailure(t *testing.T) {
	counter := 0
	failing := New("boom", func(_ context.Context, _ int, pctx pipectx.Context) outcome.Outcome[int] {
		return outcome.Err[int]("boom", pctx)
	})
	counting := New("count", func(_ context.Context, n int, pctx pipectx.Context) outcome.Outcome[int] {
		counter++
		return outcome.Ok(n, pctx)
	})
	pipeline := Then(failing, counting)

	out := pipeline.Execute(context.Background(), 0, freshCtx())

	if !out.IsFailure() || out.Error() != "boom" {
		t.Fatalf("result = %+v, want Failure(boom)", out)
	}
	if counter != 0 {
		t.Fatalf("counter = %d, want 0 (stage2 must not run)", counter)
	}
}

func TestShortCircuitOnRejected(t *testing.T) {
	counter := 0
	blocked := New("guard", func(_ context.Context, _ int, pctx pipectx.Context) outcome.Outcome[int] {
		return outcome.Reject[int]("policy-a", "blocked", pctx)
	})
	counting := New("count", func(_ context.Context, n int, pctx pipectx.Context) outcome.Outcome[int] {
		counter++
		return outcome.Ok(n, pctx)
	})
	pipeline := Then(blocked, counting)

	out := pipeline.Execute(context.Background(), 0, freshCtx())

	if !out.IsRejected() {
		t.Fatalf("result = %+v, want Rejected", out)
	}
	if counter != 0 {
		t.Fatalf("counter = %d, want 0", counter)
	}
}

// TestAssociativity checks that (s1▷s2)▷s3 and s1▷(s2▷s3) produce the same
// observable sequence of stage names, in order, for the same input.
func TestAssociativity(t *testing.T) {
	s1 := Map("a", func(n int) int { return n + 1 })
	s2 := Map("b", func(n int) int { return n * 2 })
	s3 := Map("c", func(n int) int { return n - 3 })

	left := Then(Then(s1, s2), s3)
	right := Then(s1, Then(s2, s3))

	leftOut := left.Execute(context.Background(), 5, freshCtx())
	rightOut := right.Execute(context.Background(), 5, freshCtx())

	if leftOut.Value() != rightOut.Value() {
		t.Fatalf("left=%d right=%d, want equal", leftOut.Value(), rightOut.Value())
	}

	leftNames := stageNames(leftOut.Context().StepLogs)
	rightNames := stageNames(rightOut.Context().StepLogs)
	if len(leftNames) != len(rightNames) {
		t.Fatalf("left logs=%v right logs=%v", leftNames, rightNames)
	}
	for i := range leftNames {
		if leftNames[i] != rightNames[i] {
			t.Fatalf("stage %d: left=%q right=%q", i, leftNames[i], rightNames[i])
		}
	}
}

func stageNames(logs []pipectx.StageLog) []string {
	names := make([]string, len(logs))
	for i, l := range logs {
		names[i] = l.StageName
	}
	return names
}

func TestIdentityIsTwoSided(t *testing.T) {
	s := Map("double", func(n int) int { return n * 2 })

	leftIdentity := Then(Identity[int](), s)
	rightIdentity := Then(s, Identity[int]())

	leftOut := leftIdentity.Execute(context.Background(), 4, freshCtx())
	rightOut := rightIdentity.Execute(context.Background(), 4, freshCtx())
	plain := s.Execute(context.Background(), 4, freshCtx())

	if leftOut.Value() != plain.Value() || rightOut.Value() != plain.Value() {
		t.Fatalf("identity composition changed value: left=%d right=%d plain=%d",
			leftOut.Value(), rightOut.Value(), plain.Value())
	}
}

func TestLoggerReceivesStartAndComplete(t *testing.T) {
	var starts, completes []string
	logger := recordingLogger{
		onStart:    func(_ pipectx.Context, name string) { starts = append(starts, name) },
		onComplete: func(_ pipectx.Context, entry pipectx.StageLog) { completes = append(completes, entry.StageName) },
	}
	ctx := WithLogger(context.Background(), logger)

	s := Map("only", func(n int) int { return n })
	s.Execute(ctx, 1, freshCtx())

	if len(starts) != 1 || starts[0] != "only" {
		t.Fatalf("starts = %v, want [only]", starts)
	}
	if len(completes) != 1 || completes[0] != "only" {
		t.Fatalf("completes = %v, want [only]", completes)
	}
}

// TestRecordReflectionsFlowsIntoStageLog checks that a leaf stage calling
// RecordReflections during its body has that count carried into the
// StageLog entry Execute appends, and that a stage which never calls it
// leaves ReflectionsUsed at its zero value.
func TestRecordReflectionsFlowsIntoStageLog(t *testing.T) {
	reporting := New("reporting", func(ctx context.Context, n int, pctx pipectx.Context) outcome.Outcome[int] {
		RecordReflections(ctx, 3)
		return outcome.Ok(n, pctx)
	})
	out := reporting.Execute(context.Background(), 1, freshCtx())
	logs := out.Context().StepLogs
	if got := logs[len(logs)-1].ReflectionsUsed; got != 3 {
		t.Fatalf("ReflectionsUsed = %d, want 3", got)
	}

	plain := Map("plain", func(n int) int { return n })
	out2 := plain.Execute(context.Background(), 1, freshCtx())
	logs2 := out2.Context().StepLogs
	if got := logs2[len(logs2)-1].ReflectionsUsed; got != 0 {
		t.Fatalf("ReflectionsUsed = %d, want 0", got)
	}
}

type recordingLogger struct {
	onStart    func(pipectx.Context, string)
	onComplete func(pipectx.Context, pipectx.StageLog)
}

func (r recordingLogger) StageStarted(ctx pipectx.Context, name string) { r.onStart(ctx, name) }
func (r recordingLogger) StageCompleted(ctx pipectx.Context, entry pipectx.StageLog) {
	r.onComplete(ctx, entry)
}
