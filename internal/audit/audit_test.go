package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	recorded []Event
	err      error
}

func (r *fakeRecorder) Record(ctx context.Context, event Event) error {
	if r.err != nil {
		return r.err
	}
	r.recorded = append(r.recorded, event)
	return nil
}

func TestTrailCollectsInOrder(t *testing.T) {
	trail := NewTrail()
	trail.Add(EventLoginFailed, "alice", "10.0.0.1", "Authentication failed")
	trail.Add(EventAccountLocked, "alice", "10.0.0.1", "Account locked")

	events := trail.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventLoginFailed, events[0].EventType)
	assert.Equal(t, EventAccountLocked, events[1].EventType)
	assert.Equal(t, "alice", events[0].Username)
	assert.Equal(t, "10.0.0.1", events[0].IP)
}

func TestFlushWritesAllEvents(t *testing.T) {
	recorder := &fakeRecorder{}
	trail := NewTrail()
	trail.Add(EventLoginSuccess, "alice", "10.0.0.1", "User authenticated successfully")
	trail.Add(EventLogoutSuccess, "alice", "10.0.0.1", "User logged out successfully")

	trail.Flush(context.Background(), recorder)

	require.Len(t, recorder.recorded, 2)
	assert.Equal(t, EventLoginSuccess, recorder.recorded[0].EventType)
	assert.Equal(t, EventLogoutSuccess, recorder.recorded[1].EventType)
	assert.Empty(t, trail.Events(), "flush drains the trail")
}

func TestFlushSwallowsRecorderErrors(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("database down")}
	trail := NewTrail()
	trail.Add(EventLoginSuccess, "alice", "10.0.0.1", "User authenticated successfully")

	// No panic, no error surface; the flow that produced the trail
	// already concluded.
	trail.Flush(context.Background(), recorder)
	assert.Empty(t, recorder.recorded)
}

func TestFlushEmptyTrail(t *testing.T) {
	recorder := &fakeRecorder{}
	NewTrail().Flush(context.Background(), recorder)
	assert.Empty(t, recorder.recorded)
}
