package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantis/verdantis/internal/observability"
)

type stubSync struct {
	err   error
	calls int
}

func (s *stubSync) Sync(context.Context) error {
	s.calls++
	return s.err
}

type stubSizer struct{}

func (stubSizer) Size() (int, int) { return 4, 2 }

func TestPolicyResyncHandlerRunsSync(t *testing.T) {
	sync := &stubSync{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewPolicyResyncHandler(sync, stubSizer{}, observability.NewMetrics(), logger)

	require.NoError(t, handler(context.Background(), NewPolicyResyncTask()))
	assert.Equal(t, 1, sync.calls)
}

func TestPolicyResyncHandlerPropagatesError(t *testing.T) {
	sync := &stubSync{err: errors.New("store down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewPolicyResyncHandler(sync, stubSizer{}, observability.NewMetrics(), logger)

	assert.Error(t, handler(context.Background(), NewPolicyResyncTask()))
}
