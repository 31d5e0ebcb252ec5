package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeySetGet(t *testing.T) {
	t.Parallel()

	counter := NewKey[int]("counter")
	label := NewKey[string]("label")

	ctx := &Context{}
	_, ok := counter.Get(ctx)
	require.False(t, ok)

	counter.Set(ctx, 3)
	label.Set(ctx, "x")

	got, ok := counter.Get(ctx)
	require.True(t, ok)
	require.Equal(t, 3, got)

	text, ok := label.Get(ctx)
	require.True(t, ok)
	require.Equal(t, "x", text)

	counter.Delete(ctx)
	_, ok = counter.Get(ctx)
	require.False(t, ok)
}

func TestKeyTypeMismatch(t *testing.T) {
	t.Parallel()

	ctx := &Context{}
	NewKey[string]("shared").Set(ctx, "value")

	_, ok := NewKey[int]("shared").Get(ctx)
	require.False(t, ok)
}

func TestUserDataDoesNotCrossEvents(t *testing.T) {
	t.Parallel()

	key := NewKey[string]("session")
	raw := &VKUpdate{Type: VKTypeMessageNew}

	first := Normalize(raw, nil)
	key.Set(first, "set on first")

	second := Normalize(raw, nil)
	_, ok := key.Get(second)
	require.False(t, ok)
}

func TestStop(t *testing.T) {
	t.Parallel()

	ctx := &Context{}
	require.False(t, ctx.Stopped())
	ctx.Stop()
	require.True(t, ctx.Stopped())
}
