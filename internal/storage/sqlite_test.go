package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "streamrec/pkg/logx"
)

func openTest(t *testing.T, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	require.NoError(t, err)
	require.NotNil(t, st)
	return st
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.sqlite3")
	ctx := context.Background()

	st := openTest(t, path)
	rec, err := st.AppendLive(ctx, LiveRecord{Plugin: "hls", Streamer: "alice", URL: "https://x/live.m3u8"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.NoError(t, st.Close())

	st = openTest(t, path)
	defer st.Close()
	got, err := st.RecentLive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, rec.ID, got[0].ID)
	require.Equal(t, "alice", got[0].Streamer)
}

func TestRecentLiveNewestFirst(t *testing.T) {
	st := openTest(t, filepath.Join(t.TempDir(), "db.sqlite3"))
	defer st.Close()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a", "b", "c"} {
		_, err := st.AppendLive(ctx, LiveRecord{At: base.Add(time.Duration(i) * time.Minute), Plugin: "p", Streamer: name, URL: "u"})
		require.NoError(t, err)
	}

	got, err := st.RecentLive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[0].Streamer)
	require.Equal(t, "b", got[1].Streamer)
}

func TestDedup(t *testing.T) {
	st := openTest(t, filepath.Join(t.TempDir(), "db.sqlite3"))
	defer st.Close()
	ctx := context.Background()

	_, ok, err := st.GetDedup(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	until := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	require.NoError(t, st.PutDedup(ctx, "k", until))
	require.NoError(t, st.PutDedup(ctx, "k", until.Add(time.Second)))

	got, ok, err := st.GetDedup(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(until.Add(time.Second)))
}

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	require.NoError(t, err)
	require.Nil(t, st)

	_, err = Open(Config{Driver: "postgres"}, logx.Nop())
	require.Error(t, err)
}
