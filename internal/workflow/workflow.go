// Package workflow is a small composition engine for multi-stage LLM
// pipelines: sequential steps, parallel fan-out/fan-in, and exclusive
// branching, with typed-by-field data threading between steps.
//
// The engine owns no storage and performs no retries; failures propagate to
// the caller (typically a queue job, which applies its own retry policy) and
// lifecycle is exposed through an Observer.
package workflow

import (
	"context"
	"fmt"
	"time"
)

// Data is the run object threaded between steps. Each step receives the
// union of upstream outputs and returns the fields it adds.
type Data map[string]any

// Clone returns a shallow copy; steps must treat their input as read-only.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Has reports whether every named field is present.
func (d Data) Has(fields ...string) (string, bool) {
	for _, f := range fields {
		if _, ok := d[f]; !ok {
			return f, false
		}
	}
	return "", true
}

// StepFunc executes one unit of work. The returned Data holds only the
// fields the step adds; the engine merges it over the input. A nil return
// with nil error is a pure passthrough.
type StepFunc func(ctx context.Context, in Data) (Data, error)

// Step is a named unit of work with a declared input contract.
type Step struct {
	ID       string
	Requires []string
	Run      StepFunc
}

// Predicate selects a branch from the run input.
type Predicate func(in Data) bool

// Branch pairs a predicate with the sub-workflow it selects.
type Branch struct {
	When Predicate
	Flow *Workflow
}

// ValidationError reports a missing field in a step's input or a workflow's
// declared input/output. It is structural and never retried.
type ValidationError struct {
	Workflow string
	Step     string
	Field    string
}

func (e *ValidationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("workflow %s: step %s: missing required field %q", e.Workflow, e.Step, e.Field)
	}
	return fmt.Sprintf("workflow %s: missing required field %q", e.Workflow, e.Field)
}

// NoBranchError reports that no branch predicate matched the input.
type NoBranchError struct {
	Workflow string
}

func (e *NoBranchError) Error() string {
	return fmt.Sprintf("workflow %s: no branch predicate matched", e.Workflow)
}

type nodeKind int

const (
	nodeStep nodeKind = iota
	nodeParallel
	nodeBranch
)

type node struct {
	kind     nodeKind
	step     Step
	parallel []Step
	branches []Branch
}

// Builder assembles a Workflow. Obtain one with Define, chain Then /
// Parallel / Branch, and finish with Commit.
type Builder struct {
	id       string
	inputs   []string
	outputs  []string
	nodes    []node
	observer Observer
}

// Define starts a new workflow definition.
func Define(id string) *Builder {
	return &Builder{id: id, observer: NoopObserver{}}
}

// Inputs declares fields that must be present in the run input.
func (b *Builder) Inputs(fields ...string) *Builder {
	b.inputs = append(b.inputs, fields...)
	return b
}

// Outputs declares fields that must be present when the run completes.
func (b *Builder) Outputs(fields ...string) *Builder {
	b.outputs = append(b.outputs, fields...)
	return b
}

// WithObserver attaches a lifecycle observer. Defaults to NoopObserver.
func (b *Builder) WithObserver(obs Observer) *Builder {
	if obs != nil {
		b.observer = obs
	}
	return b
}

// Then appends a sequential step.
func (b *Builder) Then(s Step) *Builder {
	mustStep(b.id, s)
	b.nodes = append(b.nodes, node{kind: nodeStep, step: s})
	return b
}

// Parallel appends a fan-out: every step receives the same input
// concurrently and the outputs are merged keyed by step ID. The first
// branch error fails the run immediately; remaining branch results are
// discarded, not cancelled.
func (b *Builder) Parallel(steps ...Step) *Builder {
	if len(steps) == 0 {
		panic(fmt.Sprintf("workflow %s: parallel group must not be empty", b.id))
	}
	for _, s := range steps {
		mustStep(b.id, s)
	}
	b.nodes = append(b.nodes, node{kind: nodeParallel, parallel: steps})
	return b
}

// Branch appends an exclusive dispatch: predicates are evaluated in order
// against the input and the first match selects its sub-workflow. No match
// fails the run.
func (b *Builder) Branch(branches ...Branch) *Builder {
	if len(branches) == 0 {
		panic(fmt.Sprintf("workflow %s: branch group must not be empty", b.id))
	}
	for _, br := range branches {
		if br.When == nil || br.Flow == nil {
			panic(fmt.Sprintf("workflow %s: branch needs both predicate and sub-workflow", b.id))
		}
	}
	b.nodes = append(b.nodes, node{kind: nodeBranch, branches: branches})
	return b
}

// Commit finalizes the definition.
func (b *Builder) Commit() *Workflow {
	return &Workflow{
		id:       b.id,
		inputs:   b.inputs,
		outputs:  b.outputs,
		nodes:    b.nodes,
		observer: b.observer,
	}
}

func mustStep(workflowID string, s Step) {
	if s.ID == "" {
		panic(fmt.Sprintf("workflow %s: step ID must not be empty", workflowID))
	}
	if s.Run == nil {
		panic(fmt.Sprintf("workflow %s: step %s has nil function", workflowID, s.ID))
	}
}

// Workflow is an immutable, committed definition.
type Workflow struct {
	id       string
	inputs   []string
	outputs  []string
	nodes    []node
	observer Observer
}

// ID returns the workflow identifier.
func (w *Workflow) ID() string { return w.id }

// AsStep wraps the workflow so it can be composed inside another one.
func (w *Workflow) AsStep() Step {
	return Step{ID: w.id, Run: func(ctx context.Context, in Data) (Data, error) {
		return w.run(ctx, in)
	}}
}

// Run executes the workflow against input. The input map is never mutated.
func (w *Workflow) Run(ctx context.Context, input Data) (Data, error) {
	w.observer.OnWorkflowStart(ctx, w.id)

	out, err := w.run(ctx, input)
	if err != nil {
		w.observer.OnWorkflowFailed(ctx, w.id, err)
		return nil, err
	}

	w.observer.OnWorkflowCompleted(ctx, w.id)
	return out, nil
}

func (w *Workflow) run(ctx context.Context, input Data) (Data, error) {
	if input == nil {
		input = Data{}
	}
	if field, ok := input.Has(w.inputs...); !ok {
		return nil, &ValidationError{Workflow: w.id, Field: field}
	}

	current := input.Clone()
	for _, n := range w.nodes {
		var (
			next Data
			err  error
		)
		switch n.kind {
		case nodeStep:
			next, err = w.runStep(ctx, n.step, current)
		case nodeParallel:
			next, err = w.runParallel(ctx, n.parallel, current)
		case nodeBranch:
			next, err = w.runBranch(ctx, n.branches, current)
		}
		if err != nil {
			return nil, err
		}
		current = next
	}

	if field, ok := current.Has(w.outputs...); !ok {
		return nil, &ValidationError{Workflow: w.id, Field: field}
	}
	return current, nil
}

func (w *Workflow) runStep(ctx context.Context, s Step, in Data) (Data, error) {
	if field, ok := in.Has(s.Requires...); !ok {
		return nil, &ValidationError{Workflow: w.id, Step: s.ID, Field: field}
	}

	w.observer.OnStepStart(ctx, w.id, s.ID)
	start := time.Now()

	out, err := s.Run(ctx, in)
	w.observer.OnStepCompleted(ctx, w.id, s.ID, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", s.ID, err)
	}

	// Structural passthrough: the step's fields augment the run object.
	merged := in.Clone()
	for k, v := range out {
		merged[k] = v
	}
	return merged, nil
}

type parallelResult struct {
	id  string
	out Data
	err error
}

func (w *Workflow) runParallel(ctx context.Context, steps []Step, in Data) (Data, error) {
	for _, s := range steps {
		if field, ok := in.Has(s.Requires...); !ok {
			return nil, &ValidationError{Workflow: w.id, Step: s.ID, Field: field}
		}
	}

	results := make(chan parallelResult, len(steps))
	for _, s := range steps {
		s := s
		w.observer.OnStepStart(ctx, w.id, s.ID)
		go func() {
			start := time.Now()
			out, err := s.Run(ctx, in)
			w.observer.OnStepCompleted(ctx, w.id, s.ID, err, time.Since(start))
			results <- parallelResult{id: s.ID, out: out, err: err}
		}()
	}

	merged := in.Clone()
	for range steps {
		r := <-results
		if r.err != nil {
			// Fail fast. The channel is buffered, so outstanding branches
			// finish on their own and their results are dropped.
			return nil, fmt.Errorf("step %s: %w", r.id, r.err)
		}
		merged[r.id] = r.out
	}
	return merged, nil
}

func (w *Workflow) runBranch(ctx context.Context, branches []Branch, in Data) (Data, error) {
	for _, br := range branches {
		if br.When(in) {
			return br.Flow.run(ctx, in)
		}
	}
	return nil, &NoBranchError{Workflow: w.id}
}
