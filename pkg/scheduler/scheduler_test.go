package scheduler_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentio-ai/sentio-go/pkg/scheduler"
)

func TestRecorderKeepsRequestsInOrder(t *testing.T) {
	rec := scheduler.NewRecorder()

	at := time.Now().Add(time.Hour)
	require.NoError(t, rec.Schedule("u1", at, scheduler.Payload{OwnerID: "u1", Message: "first", Reason: "stale_concern"}))
	require.NoError(t, rec.Schedule("u2", at, scheduler.Payload{OwnerID: "u2", Message: "second"}))

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Payload.Message)
	assert.Equal(t, "stale_concern", entries[0].Payload.Reason)
	assert.Equal(t, "u2", entries[1].OwnerID)
	assert.Equal(t, at, entries[0].At)

	// Entries returns a copy.
	entries[0].Payload.Message = "mutated"
	assert.Equal(t, "first", rec.Entries()[0].Payload.Message)
}

func TestCronDeliversPastPayloadImmediately(t *testing.T) {
	delivered := make(chan scheduler.Payload, 1)
	cron, err := scheduler.NewCron(func(p scheduler.Payload) { delivered <- p }, zerolog.Nop())
	require.NoError(t, err)
	defer cron.Stop()

	err = cron.Schedule("u1", time.Now().Add(-time.Minute), scheduler.Payload{OwnerID: "u1", Message: "check in"})
	require.NoError(t, err)

	select {
	case p := <-delivered:
		assert.Equal(t, "check in", p.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("past-due payload was not delivered")
	}
}

func TestCronDeliversFuturePayload(t *testing.T) {
	delivered := make(chan scheduler.Payload, 1)
	cron, err := scheduler.NewCron(func(p scheduler.Payload) { delivered <- p }, zerolog.Nop())
	require.NoError(t, err)
	defer cron.Stop()

	err = cron.Schedule("u1", time.Now().Add(2*time.Second), scheduler.Payload{OwnerID: "u1", Message: "soon"})
	require.NoError(t, err)

	select {
	case p := <-delivered:
		assert.Equal(t, "soon", p.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled payload was not delivered")
	}
}

func TestCronConcurrentSchedules(t *testing.T) {
	const n = 4
	delivered := make(chan scheduler.Payload, n)
	cron, err := scheduler.NewCron(func(p scheduler.Payload) { delivered <- p }, zerolog.Nop())
	require.NoError(t, err)
	defer cron.Stop()

	at := time.Now().Add(1500 * time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, cron.Schedule("u1", at, scheduler.Payload{Message: fmt.Sprintf("m%d", i)}))
		}(i)
	}
	wg.Wait()

	seen := 0
	deadline := time.After(5 * time.Second)
	for seen < n {
		select {
		case <-delivered:
			seen++
		case <-deadline:
			t.Fatalf("only %d of %d payloads delivered", seen, n)
		}
	}
}

func TestCronRejectsScheduleAfterStop(t *testing.T) {
	cron, err := scheduler.NewCron(func(scheduler.Payload) {}, zerolog.Nop())
	require.NoError(t, err)

	cron.Stop()
	cron.Stop() // idempotent

	err = cron.Schedule("u1", time.Now().Add(time.Hour), scheduler.Payload{})
	assert.Error(t, err)
}

func TestCronRequiresDeliverFunc(t *testing.T) {
	_, err := scheduler.NewCron(nil, zerolog.Nop())
	assert.Error(t, err)
}
