// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codereview/services/review/ast"
	"github.com/AleutianAI/codereview/services/review/rules"
)

// =============================================================================
// Test detectors
// =============================================================================

func rule(id string, priority int, d rules.DetectorFunc) rules.Rule {
	return rules.Rule{
		ID:             id,
		Category:       rules.CategoryMemory,
		Severity:       rules.SeverityMajor,
		Priority:       priority,
		BaseConfidence: 0.8,
		Enabled:        true,
		Detector:       d,
	}
}

// emit returns a detector reporting n violations on lines 1..n.
func emit(n int, confidence float64) rules.DetectorFunc {
	return func(_ context.Context, _ *ast.Program, actx ast.Context) ([]rules.RawViolation, error) {
		out := make([]rules.RawViolation, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, rules.RawViolation{
				Location:   rules.Location{File: actx.File, Line: i, Column: 1},
				Message:    fmt.Sprintf("finding %d", i),
				Confidence: confidence,
			})
		}
		return out, nil
	}
}

func failing(msg string) rules.DetectorFunc {
	return func(context.Context, *ast.Program, ast.Context) ([]rules.RawViolation, error) {
		return nil, errors.New(msg)
	}
}

func panicking() rules.DetectorFunc {
	return func(context.Context, *ast.Program, ast.Context) ([]rules.RawViolation, error) {
		var m map[string]int
		m["boom"]++
		return nil, nil
	}
}

// stuck ignores its context and blocks until release is closed.
func stuck(release <-chan struct{}) rules.DetectorFunc {
	return func(context.Context, *ast.Program, ast.Context) ([]rules.RawViolation, error) {
		<-release
		return []rules.RawViolation{{Message: "too late"}}, nil
	}
}

func newExecutor(t *testing.T, concurrency int, timeout time.Duration) *Executor {
	t.Helper()
	e, err := New(Config{MaxConcurrency: concurrency, TimeoutPerRule: timeout})
	require.NoError(t, err)
	return e
}

var (
	testProg = &ast.Program{}
	testCtx  = ast.Context{File: "Unit.cpp"}
)

func failureIDs(fs []rules.RuleExecutionError) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.RuleID)
	}
	return out
}

// =============================================================================
// Tests
// =============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{MaxConcurrency: 0, TimeoutPerRule: time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{MaxConcurrency: 1, TimeoutPerRule: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	e, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeoutPerRule, e.Config().TimeoutPerRule)
	assert.GreaterOrEqual(t, e.Config().MaxConcurrency, 1)
}

func TestExecute_Empty(t *testing.T) {
	for _, n := range []int{1, 4} {
		out := newExecutor(t, n, time.Second).Execute(context.Background(), nil, testProg, testCtx)
		assert.Empty(t, out.Violations)
		assert.Empty(t, out.Failures)
		assert.Empty(t, out.Timings)
		assert.Empty(t, out.Executed)
		assert.Empty(t, out.NotRun)
	}
}

func TestExecute_Sequential_PreservesOrder(t *testing.T) {
	selected := []rules.Rule{
		rule("A", 90, emit(2, 0.9)),
		rule("B", 50, emit(1, 0.7)),
	}

	out := newExecutor(t, 1, time.Second).Execute(context.Background(), selected, testProg, testCtx)

	require.Len(t, out.Violations, 3)
	assert.Equal(t, []string{"A", "A", "B"}, []string{out.Violations[0].RuleID, out.Violations[1].RuleID, out.Violations[2].RuleID})
	assert.Equal(t, 1, out.Violations[0].Location.Line)
	assert.Equal(t, 2, out.Violations[1].Location.Line)
	assert.Equal(t, []string{"A", "B"}, out.Executed)
}

func TestExecute_TagsViolations(t *testing.T) {
	r := rule("MEM-001", 85, emit(1, 0))
	r.Category = rules.CategoryMemory
	r.Severity = rules.SeverityCritical
	r.BaseConfidence = 0.75

	out := newExecutor(t, 2, time.Second).Execute(context.Background(), []rules.Rule{r}, testProg, testCtx)

	require.Len(t, out.Violations, 1)
	v := out.Violations[0]
	assert.Equal(t, "MEM-001", v.RuleID)
	assert.Equal(t, 0.75, v.Confidence)
	assert.Equal(t, rules.Metadata{
		Category: rules.CategoryMemory,
		Severity: rules.SeverityCritical,
		Priority: 85,
		Source:   rules.SourceDetector,
	}, v.Metadata)
}

func TestExecute_FailureIsolation(t *testing.T) {
	for _, concurrency := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			baseline := []rules.Rule{
				rule("A", 90, emit(2, 0.9)),
				rule("B", 80, emit(3, 0.9)),
				rule("C", 70, emit(1, 0.9)),
			}
			withBad := []rules.Rule{
				baseline[0],
				rule("BAD", 85, failing("regex compile failed")),
				baseline[1],
				rule("PANIC", 75, panicking()),
				baseline[2],
			}

			e := newExecutor(t, concurrency, time.Second)
			clean := e.Execute(context.Background(), baseline, testProg, testCtx)
			dirty := e.Execute(context.Background(), withBad, testProg, testCtx)

			assert.Len(t, dirty.Violations, len(clean.Violations))
			assert.ElementsMatch(t, []string{"BAD", "PANIC"}, failureIDs(dirty.Failures))

			for _, f := range dirty.Failures {
				assert.False(t, f.Timeout)
				switch f.RuleID {
				case "BAD":
					assert.Equal(t, "regex compile failed", f.Message)
				case "PANIC":
					assert.Contains(t, f.Message, ErrDetectorPanic.Error())
				}
			}
			assert.Len(t, dirty.Executed, 5)
		})
	}
}

func TestExecute_TimeoutIsolation(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	const timeout = 50 * time.Millisecond
	selected := []rules.Rule{
		rule("FAST-1", 90, emit(1, 0.9)),
		rule("SLOW", 80, stuck(release)),
		rule("FAST-2", 70, emit(1, 0.9)),
	}

	start := time.Now()
	out := newExecutor(t, 3, timeout).Execute(context.Background(), selected, testProg, testCtx)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, timeout+time.Second, "executor waited on a stuck detector")
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "SLOW", out.Failures[0].RuleID)
	assert.True(t, out.Failures[0].Timeout)
	assert.Contains(t, out.Failures[0].Message, "timed out")

	assert.Len(t, out.Violations, 2)
	for _, v := range out.Violations {
		assert.NotEqual(t, "SLOW", v.RuleID)
	}
	assert.GreaterOrEqual(t, out.Timings["SLOW"], timeout)
}

func TestExecute_TimeoutCancelsDetectorContext(t *testing.T) {
	observed := make(chan error, 1)
	watcher := rules.DetectorFunc(func(ctx context.Context, _ *ast.Program, _ ast.Context) ([]rules.RawViolation, error) {
		<-ctx.Done()
		observed <- ctx.Err()
		return nil, ctx.Err()
	})

	out := newExecutor(t, 1, 20*time.Millisecond).Execute(context.Background(), []rules.Rule{rule("W", 50, watcher)}, testProg, testCtx)

	require.Len(t, out.Failures, 1)
	assert.True(t, out.Failures[0].Timeout)
	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("detector context was not cancelled")
	}
}

func TestExecute_TimingsForEveryOutcome(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	selected := []rules.Rule{
		rule("OK", 90, emit(1, 0.9)),
		rule("ERR", 80, failing("nope")),
		rule("PANIC", 70, panicking()),
		rule("SLOW", 60, stuck(release)),
	}
	out := newExecutor(t, 2, 20*time.Millisecond).Execute(context.Background(), selected, testProg, testCtx)

	assert.Len(t, out.Timings, 4)
	for _, id := range []string{"OK", "ERR", "PANIC", "SLOW"} {
		_, ok := out.Timings[id]
		assert.True(t, ok, "no timing for %s", id)
	}
}

func TestExecute_SequentialAndParallelAgree(t *testing.T) {
	var selected []rules.Rule
	for i := 0; i < 20; i++ {
		selected = append(selected, rule(fmt.Sprintf("R%02d", i), 100-i, emit(i%4, 0.6+float64(i%3)/10)))
	}
	selected = append(selected, rule("BAD", 10, failing("x")))

	seq := newExecutor(t, 1, time.Second).Execute(context.Background(), selected, testProg, testCtx)
	par := newExecutor(t, 6, time.Second).Execute(context.Background(), selected, testProg, testCtx)

	assert.ElementsMatch(t, seq.Violations, par.Violations)
	assert.ElementsMatch(t, seq.Failures, par.Failures)
	assert.ElementsMatch(t, seq.Executed, par.Executed)
}

func TestExecute_ChunksRunInOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	tracked := func(id string) rules.DetectorFunc {
		return func(context.Context, *ast.Program, ast.Context) ([]rules.RawViolation, error) {
			record("start:" + id)
			time.Sleep(10 * time.Millisecond)
			record("end:" + id)
			return nil, nil
		}
	}

	selected := []rules.Rule{
		rule("A", 90, tracked("A")),
		rule("B", 80, tracked("B")),
		rule("C", 70, tracked("C")),
		rule("D", 60, tracked("D")),
		rule("E", 50, tracked("E")),
	}
	out := newExecutor(t, 2, time.Second).Execute(context.Background(), selected, testProg, testCtx)
	require.Len(t, out.Executed, 5)

	pos := make(map[string]int, len(events))
	for i, e := range events {
		pos[e] = i
	}
	chunks := [][]string{{"A", "B"}, {"C", "D"}, {"E"}}
	for i := 1; i < len(chunks); i++ {
		for _, prev := range chunks[i-1] {
			for _, next := range chunks[i] {
				assert.Less(t, pos["end:"+prev], pos["start:"+next], "%s started before %s ended", next, prev)
			}
		}
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, out.Executed)
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	selected := []rules.Rule{rule("A", 90, emit(1, 0.9)), rule("B", 80, emit(1, 0.9))}
	for _, n := range []int{1, 2} {
		out := newExecutor(t, n, time.Second).Execute(ctx, selected, testProg, testCtx)
		assert.Empty(t, out.Executed)
		assert.Equal(t, []string{"A", "B"}, out.NotRun)
		assert.Empty(t, out.Violations)
	}
}

func TestExecute_CancelledMidRun(t *testing.T) {
	t.Run("sequential", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		canceller := rules.DetectorFunc(func(context.Context, *ast.Program, ast.Context) ([]rules.RawViolation, error) {
			cancel()
			return nil, nil
		})
		selected := []rules.Rule{
			rule("FIRST", 90, canceller),
			rule("SECOND", 80, emit(1, 0.9)),
			rule("THIRD", 70, emit(1, 0.9)),
		}

		out := newExecutor(t, 1, time.Second).Execute(ctx, selected, testProg, testCtx)

		assert.Equal(t, []string{"FIRST"}, out.Executed)
		assert.Equal(t, []string{"SECOND", "THIRD"}, out.NotRun)
	})

	t.Run("chunked", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		canceller := rules.DetectorFunc(func(context.Context, *ast.Program, ast.Context) ([]rules.RawViolation, error) {
			cancel()
			return nil, nil
		})
		selected := []rules.Rule{
			rule("A", 90, canceller),
			rule("B", 80, emit(1, 0.9)),
			rule("C", 70, emit(1, 0.9)),
			rule("D", 60, emit(1, 0.9)),
		}

		out := newExecutor(t, 2, time.Second).Execute(ctx, selected, testProg, testCtx)

		assert.ElementsMatch(t, []string{"A", "B"}, out.Executed)
		assert.Equal(t, []string{"C", "D"}, out.NotRun)
	})
}
