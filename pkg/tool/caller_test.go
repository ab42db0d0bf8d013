package tool_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentio-ai/sentio-go/pkg/tool"
)

func newEchoDescriptor(name string, invoked *atomic.Int64) *tool.Descriptor {
	return &tool.Descriptor{
		Name:        name,
		Description: "echo the city parameter",
		Category:    "test",
		Parameters: map[string]tool.ParamSpec{
			"city": {Type: "string", Required: true},
			"unit": {Type: "string", Default: "celsius"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			if invoked != nil {
				invoked.Add(1)
			}
			return fmt.Sprintf("%v/%v", params["city"], params["unit"]), nil
		},
	}
}

func newCaller(t *testing.T, descs ...*tool.Descriptor) *tool.Caller {
	t.Helper()

	registry := tool.NewRegistry()
	for _, desc := range descs {
		require.NoError(t, registry.Register(desc))
	}
	caller, err := tool.NewCaller(&tool.CallerConfig{Registry: registry})
	require.NoError(t, err)
	return caller
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	registry := tool.NewRegistry()

	require.NoError(t, registry.Register(newEchoDescriptor("echo", nil)))
	err := registry.Register(newEchoDescriptor("echo", nil))

	var dup *tool.DuplicateToolError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "echo", dup.Name)
}

func TestMissingRequiredParameterNotInvoked(t *testing.T) {
	var invoked atomic.Int64
	caller := newCaller(t, newEchoDescriptor("echo", &invoked))

	res := caller.Call(context.Background(), "echo", map[string]interface{}{})

	assert.False(t, res.Success)
	var verr *tool.ValidationError
	require.ErrorAs(t, res.Err, &verr)
	assert.Equal(t, "echo", verr.Tool)
	assert.Equal(t, int64(0), invoked.Load(), "the handler must not run on validation failure")
}

func TestWrongTypeRejected(t *testing.T) {
	var invoked atomic.Int64
	caller := newCaller(t, newEchoDescriptor("echo", &invoked))

	res := caller.Call(context.Background(), "echo", map[string]interface{}{"city": 42})

	assert.False(t, res.Success)
	var verr *tool.ValidationError
	assert.ErrorAs(t, res.Err, &verr)
	assert.Equal(t, int64(0), invoked.Load())
}

func TestDefaultsApplied(t *testing.T) {
	caller := newCaller(t, newEchoDescriptor("echo", nil))

	res := caller.Call(context.Background(), "echo", map[string]interface{}{"city": "Oslo"})

	require.True(t, res.Success, "err=%v", res.Err)
	assert.Equal(t, "Oslo/celsius", res.Result)
}

func TestUnknownToolReported(t *testing.T) {
	caller := newCaller(t)

	res := caller.Call(context.Background(), "nope", nil)

	assert.False(t, res.Success)
	var unknown *tool.UnknownToolError
	assert.ErrorAs(t, res.Err, &unknown)
}

func TestCallTimeout(t *testing.T) {
	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(&tool.Descriptor{
		Name:        "slow",
		Description: "sleeps past the deadline",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			select {
			case <-time.After(time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}))
	caller, err := tool.NewCaller(&tool.CallerConfig{Registry: registry, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	res := caller.Call(context.Background(), "slow", nil)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestBatchResultsIndependent(t *testing.T) {
	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(&tool.Descriptor{
		Name:        "ok",
		Description: "always succeeds",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "fine", nil
		},
	}))
	require.NoError(t, registry.Register(&tool.Descriptor{
		Name:        "boom",
		Description: "always fails",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, errors.New("exploded")
		},
	}))
	caller, err := tool.NewCaller(&tool.CallerConfig{Registry: registry})
	require.NoError(t, err)

	results := caller.CallAll(context.Background(), []tool.Invocation{
		{Name: "boom"},
		{Name: "ok"},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success, "one failure must not abort the batch")
}

func TestCallParallelPreservesOrder(t *testing.T) {
	caller := newCaller(t, newEchoDescriptor("echo", nil))

	results := caller.CallParallel(context.Background(), []tool.Invocation{
		{Name: "echo", Params: map[string]interface{}{"city": "Oslo"}},
		{Name: "echo", Params: map[string]interface{}{"city": "Lima"}},
		{Name: "echo", Params: map[string]interface{}{"city": "Pune"}},
	})

	require.Len(t, results, 3)
	assert.Equal(t, "Oslo/celsius", results[0].Result)
	assert.Equal(t, "Lima/celsius", results[1].Result)
	assert.Equal(t, "Pune/celsius", results[2].Result)
}

func TestHistoryRingBounded(t *testing.T) {
	registry := tool.NewRegistry()
	require.NoError(t, registry.Register(newEchoDescriptor("echo", nil)))
	caller, err := tool.NewCaller(&tool.CallerConfig{Registry: registry, HistoryCapacity: 3})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		caller.Call(context.Background(), "echo", map[string]interface{}{"city": fmt.Sprintf("c%d", i)})
	}

	records := caller.History(0)
	require.Len(t, records, 3, "history retains only the most recent N calls")
	assert.Equal(t, "c4", records[0].Params["city"], "newest first")
	assert.Equal(t, "c2", records[2].Params["city"])
	for _, rec := range records {
		assert.True(t, rec.Success)
		assert.False(t, rec.Timestamp.IsZero())
	}
}
