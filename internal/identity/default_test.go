package identity

import (
	"context"
	"testing"
	"time"

	"github.com/maauso/idworker/internal/config"
	"github.com/maauso/idworker/internal/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWideConfig(t *testing.T) {
	cfg := WideConfig(8)

	assert.Equal(t, uint(8), cfg.WorkerIDBits)
	assert.Equal(t, snowflake.DefaultConfig.SequenceBits, cfg.SequenceBits)
	assert.False(t, cfg.Truncate32)
	assert.Equal(t, snowflake.DefaultConfig, WideConfig(10))
}

func TestNewAllocator_FromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Dir:                 dir,
		HostAddress:         "10.0.0.3",
		Principal:           "svc",
		WorkerIDBits:        4,
		CoordinatorDisabled: true,
		CoordinatorTimeout:  time.Second,
	}

	a, err := NewAllocator(cfg, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, dir, a.Dir())
	assert.Equal(t, "10.0.0.3.svc", a.IPU())
	assert.Equal(t, int64(15), a.MaxWorkerID())

	require.NoError(t, a.Initialize(context.Background()))
	defer func() { _ = a.Release() }()
	assert.Equal(t, int64(3), a.WorkerID())
}

func TestDefault_UsesEnvironment(t *testing.T) {
	t.Setenv("IDWORKER_DIR", t.TempDir())
	t.Setenv("IDWORKER_HOST_ADDRESS", "10.0.0.5")
	t.Setenv("IDWORKER_PRINCIPAL", "svc")
	t.Setenv("COORDINATOR_DISABLED", "true")

	r := Default()
	require.Same(t, r, Default())
	defer func() { require.NoError(t, r.Close()) }()

	id, err := r.WorkerID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	next, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), r.Decode(next).WorkerID)
}
