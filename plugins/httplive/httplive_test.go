package httplive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"streamrec/internal/checker"
)

func TestCheck(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		switch r.URL.Path {
		case "/on":
			_, _ = w.Write([]byte(`{"room":{"status":"live"}}`))
		case "/off":
			_, _ = w.Write([]byte(`{"room":{"status":"offline"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New([]byte(`{"live_regex":"\"status\":\"live\"","headers":{"Cookie":"a=b"}}`))
	require.NoError(t, err)
	ctx := context.Background()

	live, err := c.Check(ctx, checker.Target{URL: srv.URL + "/on"})
	require.NoError(t, err)
	require.True(t, live)
	require.Equal(t, "streamrec/1.0", gotUA)
	require.Equal(t, "a=b", gotCookie)

	live, err = c.Check(ctx, checker.Target{URL: srv.URL + "/off"})
	require.NoError(t, err)
	require.False(t, live)

	live, err = c.Check(ctx, checker.Target{URL: srv.URL + "/gone"})
	require.NoError(t, err)
	require.False(t, live)
}

func TestCheckWithoutRegex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := New(nil)
	require.NoError(t, err)
	live, err := c.Check(context.Background(), checker.Target{URL: srv.URL})
	require.NoError(t, err)
	require.True(t, live)
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New([]byte(`{"timeout":"1s"}`))
	require.NoError(t, err)
	_, err = c.Check(context.Background(), checker.Target{URL: url})
	require.ErrorIs(t, err, checker.ErrTransient)
}

func TestNewRejectsBadRegex(t *testing.T) {
	_, err := New([]byte(`{"live_regex":"("}`))
	require.Error(t, err)
}
