package workflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) OnWorkflowStart(ctx context.Context, id string) { r.add("start:" + id) }
func (r *recordingObserver) OnWorkflowCompleted(ctx context.Context, id string) {
	r.add("completed:" + id)
}
func (r *recordingObserver) OnWorkflowFailed(ctx context.Context, id string, err error) {
	r.add("failed:" + id)
}
func (r *recordingObserver) OnStepStart(ctx context.Context, id, step string) {
	r.add("step-start:" + step)
}
func (r *recordingObserver) OnStepCompleted(ctx context.Context, id, step string, err error, d time.Duration) {
	r.add("step-done:" + step)
}

func TestObserver_LifecycleOrder(t *testing.T) {
	rec := &recordingObserver{}
	flow := Define("observed").WithObserver(rec).
		Then(addField("s1", "a", 1)).
		Commit()

	_, err := flow.Run(context.Background(), Data{})
	require.NoError(t, err)
	assert.Equal(t, []string{"start:observed", "step-start:s1", "step-done:s1", "completed:observed"}, rec.events)
}

func TestObserver_FailureReported(t *testing.T) {
	rec := &recordingObserver{}
	flow := Define("observed").WithObserver(rec).
		Then(Step{ID: "s1", Run: func(ctx context.Context, in Data) (Data, error) {
			return nil, errors.New("boom")
		}}).
		Commit()

	_, err := flow.Run(context.Background(), Data{})
	require.Error(t, err)
	assert.Contains(t, rec.events, "failed:observed")
	assert.NotContains(t, rec.events, "completed:observed")
}

func TestLoggingObserver_WritesStructuredLogs(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLoggingObserver(slog.New(slog.NewJSONHandler(&buf, nil)))

	flow := Define("logged").WithObserver(obs).Then(addField("s1", "a", 1)).Commit()
	_, err := flow.Run(context.Background(), Data{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "workflow completed")
	assert.Contains(t, buf.String(), `"workflow":"logged"`)
}

func TestCompositeObserver_FansOut(t *testing.T) {
	a := &recordingObserver{}
	b := &recordingObserver{}
	obs := NewCompositeObserver(a, nil, b)

	obs.OnWorkflowStart(context.Background(), "x")
	assert.Equal(t, []string{"start:x"}, a.events)
	assert.Equal(t, []string{"start:x"}, b.events)
}

func TestCompositeObserver_Collapses(t *testing.T) {
	assert.IsType(t, NoopObserver{}, NewCompositeObserver(nil, nil))
	single := &recordingObserver{}
	assert.Same(t, single, NewCompositeObserver(single).(*recordingObserver))
}
