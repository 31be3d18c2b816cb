// Package pprof mounts the runtime profiler under the web router.
package pprof

import (
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Rates tunes runtime profiling. Zero keeps the Go default.
type Rates struct {
	MutexProfileFraction int
	BlockProfileRate     int
}

func ApplyRates(r Rates) {
	if r.MutexProfileFraction > 0 {
		runtime.SetMutexProfileFraction(r.MutexProfileFraction)
	}
	if r.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(r.BlockProfileRate)
	}
}

// Mount registers the pprof endpoints at prefix (default /debug/pprof).
// Authentication is whatever middleware r already carries.
func Mount(r chi.Router, prefix string) {
	prefix = normalizePrefix(prefix)
	base := strings.TrimSuffix(prefix, "/")

	r.Get(base, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, prefix, http.StatusPermanentRedirect)
	})
	r.Get(base+"/cmdline", hpprof.Cmdline)
	r.Get(base+"/profile", hpprof.Profile)
	r.Get(base+"/symbol", hpprof.Symbol)
	r.Get(base+"/trace", hpprof.Trace)
	r.Get(prefix+"*", indexAt(prefix))
}

// indexAt serves the index and named profiles (heap, goroutine, ...) when
// mounted somewhere other than /debug/pprof/.
func indexAt(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix)
		if name == "" {
			hpprof.Index(w, r)
			return
		}
		hpprof.Handler(name).ServeHTTP(w, r)
	}
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = "/debug/pprof/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}
