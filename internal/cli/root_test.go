package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/idworker/internal/identity"
	"github.com/maauso/idworker/internal/workerid"
)

func newTestRegistry(t *testing.T) *identity.Registry {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := identity.NewRegistry(func() (workerid.Strategy, error) {
		a, err := workerid.New(
			workerid.WithDir(dir),
			workerid.WithHostAddress("10.0.0.9"),
			workerid.WithPrincipal("tester"),
			workerid.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return a, nil
	}, identity.WithLogger(logger))
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func execute(t *testing.T, reg *identity.Registry, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(func() (*identity.Registry, error) { return reg, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func parseLines(t *testing.T, out string) []int64 {
	t.Helper()
	var ids []int64
	for _, line := range strings.Fields(out) {
		id, err := strconv.ParseInt(line, 10, 64)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestNext_PrintsIncreasingIDs(t *testing.T) {
	reg := newTestRegistry(t)

	out, err := execute(t, reg, "next", "-n", "5")
	require.NoError(t, err)

	ids := parseLines(t, out)
	require.Len(t, ids, 5)
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}

func TestNext_Narrow(t *testing.T) {
	reg := newTestRegistry(t)

	out, err := execute(t, reg, "next", "--narrow", "-n", "3")
	require.NoError(t, err)

	ids := parseLines(t, out)
	require.Len(t, ids, 3)
	for _, id := range ids {
		assert.GreaterOrEqual(t, id, int64(0))
		assert.LessOrEqual(t, id, int64(1<<31-1))
	}
}

func TestNext_InvalidCount(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := execute(t, reg, "next", "-n", "0")
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestWorker(t *testing.T) {
	reg := newTestRegistry(t)

	out, err := execute(t, reg, "worker")
	require.NoError(t, err)
	assert.Equal(t, "9\n", out)
}

func TestDecode(t *testing.T) {
	reg := newTestRegistry(t)
	id, err := reg.Next(context.Background())
	require.NoError(t, err)

	out, err := execute(t, reg, "decode", strconv.FormatInt(id, 10))
	require.NoError(t, err)

	var got decodeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, int64(9), got.WorkerID)
	assert.NotEmpty(t, got.Timestamp)
}

func TestDecode_InvalidID(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := execute(t, reg, "decode", "abc")
	assert.Error(t, err)

	_, err = execute(t, reg, "decode", "-5")
	assert.Error(t, err)
}

func TestRegistryError(t *testing.T) {
	boom := errors.New("boom")
	root := NewRoot(func() (*identity.Registry, error) { return nil, boom })
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"worker"})

	err := root.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, boom)
}
