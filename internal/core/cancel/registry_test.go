package cancel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := New(context.Background())

	ctx, ok := r.Register("job-1")
	require.True(t, ok)
	require.NotNil(t, ctx)

	dup, ok := r.Register("job-1")
	assert.False(t, ok)
	assert.Nil(t, dup)
	assert.Equal(t, 1, r.Active())
}

func TestCancelFiresContext(t *testing.T) {
	r := New(context.Background())
	ctx, _ := r.Register("job-1")

	r.Cancel("job-1")

	assert.Error(t, ctx.Err())
	// the handle stays until the routine deregisters
	_, ok := r.Register("job-1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Active())
}

func TestCancelUnknownIsNoop(t *testing.T) {
	r := New(context.Background())
	r.Cancel("nope")
	assert.Equal(t, 0, r.Active())
}

func TestDeregisterReleasesHandle(t *testing.T) {
	r := New(context.Background())
	ctx, _ := r.Register("job-1")

	r.Deregister("job-1")

	assert.Error(t, ctx.Err())
	assert.Equal(t, 0, r.Active())

	// the id can be reused afterwards
	_, ok := r.Register("job-1")
	assert.True(t, ok)
}

func TestRootCancellationFansOut(t *testing.T) {
	root, stop := context.WithCancel(context.Background())
	r := New(root)

	a, _ := r.Register("a")
	b, _ := r.Register("b")

	stop()

	assert.Error(t, a.Err())
	assert.Error(t, b.Err())
}
