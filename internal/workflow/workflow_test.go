package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addField(id, field string, value any) Step {
	return Step{ID: id, Run: func(ctx context.Context, in Data) (Data, error) {
		return Data{field: value}, nil
	}}
}

func TestRun_Sequential(t *testing.T) {
	flow := Define("seq").
		Then(addField("one", "a", 1)).
		Then(Step{ID: "two", Requires: []string{"a"}, Run: func(ctx context.Context, in Data) (Data, error) {
			return Data{"b": in["a"].(int) + 1}, nil
		}}).
		Commit()

	out, err := flow.Run(context.Background(), Data{"seed": true})
	require.NoError(t, err)
	assert.Equal(t, 1, out["a"])
	assert.Equal(t, 2, out["b"])
	assert.Equal(t, true, out["seed"], "input fields pass through unchanged")
}

func TestRun_InputNotMutated(t *testing.T) {
	flow := Define("pure").Then(addField("one", "a", 1)).Commit()

	input := Data{"seed": true}
	_, err := flow.Run(context.Background(), input)
	require.NoError(t, err)
	assert.NotContains(t, input, "a")
}

func TestRun_MissingRequiredField(t *testing.T) {
	flow := Define("reqs").
		Then(Step{ID: "needy", Requires: []string{"absent"}, Run: func(ctx context.Context, in Data) (Data, error) {
			t.Fatal("step must not execute when validation fails")
			return nil, nil
		}}).
		Commit()

	_, err := flow.Run(context.Background(), Data{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "needy", verr.Step)
	assert.Equal(t, "absent", verr.Field)
}

func TestRun_DeclaredInputsAndOutputs(t *testing.T) {
	flow := Define("io").Inputs("topic").Outputs("draft").
		Then(addField("write", "draft", "text")).
		Commit()

	_, err := flow.Run(context.Background(), Data{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "topic", verr.Field)

	out, err := flow.Run(context.Background(), Data{"topic": "x"})
	require.NoError(t, err)
	assert.Equal(t, "text", out["draft"])
}

func TestRun_ParallelMergesByStepID(t *testing.T) {
	flow := Define("par").
		Parallel(
			addField("left", "l", "L"),
			addField("right", "r", "R"),
		).
		Then(Step{ID: "join", Requires: []string{"left", "right"}, Run: func(ctx context.Context, in Data) (Data, error) {
			l := in["left"].(Data)
			r := in["right"].(Data)
			return Data{"joined": l["l"].(string) + r["r"].(string)}, nil
		}}).
		Commit()

	out, err := flow.Run(context.Background(), Data{})
	require.NoError(t, err)
	assert.Equal(t, "LR", out["joined"])
}

func TestRun_ParallelFailFast(t *testing.T) {
	slowDone := make(chan struct{})
	boom := errors.New("boom")

	flow := Define("failfast").
		Parallel(
			Step{ID: "fails", Run: func(ctx context.Context, in Data) (Data, error) {
				return nil, boom
			}},
			Step{ID: "slow", Run: func(ctx context.Context, in Data) (Data, error) {
				<-slowDone
				return Data{"slow": true}, nil
			}},
		).
		Commit()

	start := time.Now()
	_, err := flow.Run(context.Background(), Data{})
	require.ErrorIs(t, err, boom)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "run must fail before the slow branch finishes")
	close(slowDone)
}

func TestRun_ParallelSharesInput(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]any{}

	record := func(id string) Step {
		return Step{ID: id, Run: func(ctx context.Context, in Data) (Data, error) {
			mu.Lock()
			seen[id] = in["shared"]
			mu.Unlock()
			return nil, nil
		}}
	}

	flow := Define("shared").Parallel(record("a"), record("b")).Commit()
	_, err := flow.Run(context.Background(), Data{"shared": 42})
	require.NoError(t, err)
	assert.Equal(t, 42, seen["a"])
	assert.Equal(t, 42, seen["b"])
}

func TestRun_BranchSelectsFirstMatch(t *testing.T) {
	ran := map[string]bool{}
	sub := func(name string) *Workflow {
		return Define(name).Then(Step{ID: name + "-step", Run: func(ctx context.Context, in Data) (Data, error) {
			ran[name] = true
			return Data{"picked": name}, nil
		}}).Commit()
	}

	flow := Define("dispatch").
		Branch(
			Branch{When: func(in Data) bool { return in["kind"] == "a" }, Flow: sub("a")},
			Branch{When: func(in Data) bool { return true }, Flow: sub("fallback")},
		).
		Commit()

	out, err := flow.Run(context.Background(), Data{"kind": "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", out["picked"])
	assert.True(t, ran["a"])
	assert.False(t, ran["fallback"], "only one branch executes per run")
}

func TestRun_BranchNoMatch(t *testing.T) {
	sub := Define("sub").Then(addField("s", "x", 1)).Commit()
	flow := Define("dispatch").
		Branch(Branch{When: func(in Data) bool { return false }, Flow: sub}).
		Commit()

	_, err := flow.Run(context.Background(), Data{})
	var nberr *NoBranchError
	require.ErrorAs(t, err, &nberr)
}

func TestRun_StepErrorAbortsRun(t *testing.T) {
	boom := errors.New("llm unavailable")
	after := false

	flow := Define("abort").
		Then(Step{ID: "fails", Run: func(ctx context.Context, in Data) (Data, error) {
			return nil, boom
		}}).
		Then(Step{ID: "next", Run: func(ctx context.Context, in Data) (Data, error) {
			after = true
			return nil, nil
		}}).
		Commit()

	_, err := flow.Run(context.Background(), Data{})
	require.ErrorIs(t, err, boom)
	assert.False(t, after)
}

func TestAsStep_ComposesSubWorkflow(t *testing.T) {
	inner := Define("inner").Then(addField("i", "inner_out", 7)).Commit()
	outer := Define("outer").Then(inner.AsStep()).Commit()

	out, err := outer.Run(context.Background(), Data{})
	require.NoError(t, err)
	assert.Equal(t, 7, out["inner_out"])
}
