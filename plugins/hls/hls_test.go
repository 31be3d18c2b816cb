package hls

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"streamrec/internal/checker"
)

func TestCheck(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/live.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-TARGETDURATION:2\n#EXTINF:2,\nseg1.ts\n"))
	})
	mux.HandleFunc("/ended.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:2,\nseg1.ts\n#EXT-X-ENDLIST\n"))
	})
	mux.HandleFunc("/html.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>offline</html>"))
	})
	mux.HandleFunc("/busy.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New([]byte(`{"timeout":"2s","user_agent":"test"}`))
	require.NoError(t, err)
	ctx := context.Background()

	for path, want := range map[string]bool{
		"/live.m3u8":    true,
		"/ended.m3u8":   false,
		"/html.m3u8":    false,
		"/missing.m3u8": false,
	} {
		live, err := c.Check(ctx, checker.Target{Name: "x", URL: srv.URL + path})
		require.NoError(t, err, path)
		require.Equal(t, want, live, path)
	}

	_, err = c.Check(ctx, checker.Target{Name: "x", URL: srv.URL + "/busy.m3u8"})
	require.True(t, errors.Is(err, checker.ErrTransient))
}

func TestNewRejectsUnknownKeys(t *testing.T) {
	_, err := New([]byte(`{"timeuot":"2s"}`))
	require.Error(t, err)
	_, err = New([]byte(`{"timeout":"soon"}`))
	require.Error(t, err)
}

func TestMatch(t *testing.T) {
	p := Plugin()
	require.True(t, p.Match.MatchString("https://cdn.example/a/index.m3u8"))
	require.True(t, p.Match.MatchString("http://cdn.example/a/index.M3U8?token=1"))
	require.False(t, p.Match.MatchString("https://example.com/room/1"))
}
