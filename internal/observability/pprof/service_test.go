package pprof

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestMountCustomPrefix(t *testing.T) {
	r := chi.NewRouter()
	Mount(r, "_prof")

	for path, want := range map[string]int{
		"/_prof/":                  http.StatusOK,
		"/_prof/goroutine?debug=1": http.StatusOK,
		"/_prof/cmdline":           http.StatusOK,
		"/_prof":                   http.StatusPermanentRedirect,
		"/debug/pprof/":            http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, rec.Code, path)
	}
}

func TestApplyRates(t *testing.T) {
	prev := runtime.SetMutexProfileFraction(-1)
	t.Cleanup(func() {
		runtime.SetMutexProfileFraction(prev)
		runtime.SetBlockProfileRate(0)
	})

	ApplyRates(Rates{MutexProfileFraction: 5, BlockProfileRate: 1})
	require.Equal(t, 5, runtime.SetMutexProfileFraction(-1))

	// zero keeps the current setting
	ApplyRates(Rates{})
	require.Equal(t, 5, runtime.SetMutexProfileFraction(-1))
}
