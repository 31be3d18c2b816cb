package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"streamrec/internal/checker"
)

func TestCheckDoneLabels(t *testing.T) {
	m := New()
	m.CheckDone("hls", true, nil, time.Millisecond)
	m.CheckDone("hls", false, nil, time.Millisecond)
	m.CheckDone("hls", false, checker.Transient(errors.New("reset")), time.Millisecond)
	m.CheckDone("hls", false, errors.New("broken"), time.Millisecond)

	for _, result := range []string{"live", "offline", "transient", "failed"} {
		require.Equal(t, 1.0, testutil.ToFloat64(m.checksTotal.WithLabelValues("hls", result)), result)
	}
}

func TestHandlerServesPrivateRegistry(t *testing.T) {
	m := New()
	m.WorkerExited("hls", errors.New("x"))
	m.WatchObserved("stat", true, nil)
	m.TaskExited("web", nil)
	m.LiveEvent("hls")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, `streamrec_checker_exits_total{plugin="hls",reason="error"} 1`)
	require.Contains(t, body, `streamrec_watch_checks_total{result="changed"} 1`)
	require.Contains(t, body, `streamrec_service_task_exits_total{reason="clean",task="web"} 1`)
	require.Contains(t, body, `streamrec_live_events_total{plugin="hls"} 1`)
}
