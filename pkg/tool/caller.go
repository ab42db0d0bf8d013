package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCallTimeout bounds a single tool invocation.
const DefaultCallTimeout = 10 * time.Second

// CallResult is the outcome of a single tool call. Results are independent:
// a failed call carries its error here instead of aborting the batch it was
// part of.
type CallResult struct {
	// Tool is the called tool name.
	Tool string `json:"tool"`

	// Success reports whether the call produced a result.
	Success bool `json:"success"`

	// Result is the handler's return value when Success is true.
	Result interface{} `json:"result,omitempty"`

	// Err is the failure when Success is false. Validation failures carry a
	// *ValidationError, timeouts carry context.DeadlineExceeded.
	Err error `json:"-"`

	// Latency is the wall-clock call duration.
	Latency time.Duration `json:"latency"`
}

// ErrorMessage returns the failure text, or "" on success.
func (r *CallResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// CallerConfig configures a Caller.
type CallerConfig struct {
	// Registry is the tool registry to dispatch against (required).
	Registry *Registry

	// Timeout bounds each invocation (default 10s).
	Timeout time.Duration

	// HistoryCapacity bounds the call history ring (default 256).
	HistoryCapacity int

	// Logger receives per-call events. A zero Logger is usable and silent.
	Logger zerolog.Logger
}

// Caller validates parameters against a tool's schema and executes the bound
// handler under a per-call timeout, recording every call into a bounded
// history.
//
// A Caller is safe for concurrent use.
type Caller struct {
	registry *Registry
	timeout  time.Duration
	history  *history
	logger   zerolog.Logger
}

// NewCaller creates a Caller over a registry.
func NewCaller(cfg *CallerConfig) (*Caller, error) {
	if cfg == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("caller requires a registry")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &Caller{
		registry: cfg.Registry,
		timeout:  timeout,
		history:  newHistory(cfg.HistoryCapacity),
		logger:   cfg.Logger,
	}, nil
}

// Call invokes a tool by name.
//
// Parameters are validated first; on validation failure the result carries a
// *ValidationError and the handler is never invoked. The handler runs under
// the caller's timeout; on expiry the result carries the context error. Call
// never returns a Go error for tool-level failures: every outcome is a
// CallResult with its own success flag.
func (c *Caller) Call(ctx context.Context, name string, params map[string]interface{}) *CallResult {
	start := time.Now()

	desc, err := c.registry.Get(name)
	if err != nil {
		return c.record(name, params, start, &CallResult{Tool: name, Err: err})
	}

	effective, err := desc.validate(params)
	if err != nil {
		c.logger.Debug().Str("tool", name).Err(err).Msg("tool parameters rejected")
		return c.record(name, params, start, &CallResult{Tool: name, Err: err})
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := desc.Handler(callCtx, effective)
		done <- outcome{result, err}
	}()

	var res *CallResult
	select {
	case out := <-done:
		if out.err != nil {
			res = &CallResult{Tool: name, Err: out.err}
		} else {
			res = &CallResult{Tool: name, Success: true, Result: out.result}
		}
	case <-callCtx.Done():
		res = &CallResult{Tool: name, Err: fmt.Errorf("tool %q: %w", name, callCtx.Err())}
	}

	return c.record(name, params, start, res)
}

// CallAll executes calls in order, one result per call. Failures do not stop
// the batch.
func (c *Caller) CallAll(ctx context.Context, calls []Invocation) []*CallResult {
	results := make([]*CallResult, len(calls))
	for i, call := range calls {
		results[i] = c.Call(ctx, call.Name, call.Params)
	}
	return results
}

// CallParallel executes independent calls concurrently and returns results
// in input order. One call's failure does not cancel its siblings.
func (c *Caller) CallParallel(ctx context.Context, calls []Invocation) []*CallResult {
	results := make([]*CallResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call Invocation) {
			defer wg.Done()
			results[i] = c.Call(ctx, call.Name, call.Params)
		}(i, call)
	}
	wg.Wait()

	return results
}

// Invocation names a tool and its parameters for batch execution.
type Invocation struct {
	Name   string
	Params map[string]interface{}
}

// History returns up to limit recent call records, newest first.
func (c *Caller) History(limit int) []CallRecord {
	return c.history.recent(limit)
}

// record logs and archives a call outcome.
func (c *Caller) record(name string, params map[string]interface{}, start time.Time, res *CallResult) *CallResult {
	res.Latency = time.Since(start)

	c.history.add(CallRecord{
		Tool:      name,
		Params:    params,
		Timestamp: start,
		Success:   res.Success,
		Latency:   res.Latency,
	})

	evt := c.logger.Debug().
		Str("tool", name).
		Bool("success", res.Success).
		Dur("latency", res.Latency)
	if res.Err != nil {
		evt = evt.Err(res.Err)
	}
	evt.Msg("tool call completed")

	return res
}
