package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), addr)
	require.Error(t, err)
}
