package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/forgebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/forgebuild/internal/metrics"
)

func TestStageTransitions(t *testing.T) {
	order := []Stage{StageStarted, StageFetching, StageBuilding, StageClassifying, StageRecording, StageUpdating, StageDone}
	for i := 0; i < len(order)-1; i++ {
		require.True(t, order[i].CanTransition(order[i+1]), "%s -> %s", order[i], order[i+1])
		require.True(t, order[i].CanTransition(StageAborted), "%s -> aborted", order[i])
	}

	require.False(t, StageStarted.CanTransition(StageBuilding), "stages cannot be skipped")
	require.False(t, StageRecording.CanTransition(StageFetching), "no going back")
	require.False(t, StageDone.CanTransition(StageAborted))
	require.False(t, StageAborted.CanTransition(StageStarted))
	require.True(t, StageDone.Terminal())
	require.Equal(t, "classifying", StageClassifying.String())
	require.Equal(t, "stage(42)", Stage(42).String())
}

func TestAttempt_AdvanceAndAbort(t *testing.T) {
	a := newAttempt(context.Background(), "b1", metrics.NoopRecorder{}, time.Now)

	require.NoError(t, a.advance(StageFetching))
	err := a.advance(StageRecording)
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryInternal))

	cause := errors.FileSystemError("boom").Build()
	require.Same(t, cause, a.abort(cause))
	require.Equal(t, StageAborted, a.stage)
	require.Equal(t, []Stage{StageStarted, StageFetching, StageAborted}, a.history)

	// aborting twice keeps the terminal stage
	require.Same(t, cause, a.abort(cause))
	require.Len(t, a.history, 3)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b") // distinct key does not block
	require.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key must wait")
	case <-time.After(50 * time.Millisecond):
	}
	unlockA()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not released")
	}
	unlockB()
	require.Eventually(t, func() bool { return k.size() == 0 }, time.Second, 10*time.Millisecond)
}
