package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	t.Parallel()

	dup := errors.New("dup")
	require.Equal(t, "ok", Result(nil, dup))
	require.Equal(t, "duplicate", Result(fmt.Errorf("wrapped: %w", dup), dup))
	require.Equal(t, "error", Result(errors.New("other"), dup))
	require.Equal(t, "error", Result(dup))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(MessagesPublished.WithLabelValues("test"))
	MessagesPublished.WithLabelValues("test").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(MessagesPublished.WithLabelValues("test")))
}
