package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/lotledger/lotledger/internal/domain/auth"
	"github.com/lotledger/lotledger/internal/testutil"
)

func TestEmitLogin(t *testing.T) {
	rec := &testutil.MetricsRecorder{}

	EmitLogin(rec, LoginMetric{Method: MethodPassword, Upgraded: true})
	EmitLogin(rec, LoginMetric{Method: MethodGuest, Err: domainauth.ErrGuestDisabled})

	logins := rec.Counts("auth.login")
	require.Len(t, logins, 2)
	assert.Equal(t, map[string]string{"method": "password", "result": "success"}, logins[0].Tags)
	assert.Equal(t, "error", logins[1].Tags["result"])
	assert.Equal(t, "guest_disabled", logins[1].Tags["error_class"])
	assert.Len(t, rec.Counts("auth.credential_upgraded"), 1)
}

func TestEmitRequest(t *testing.T) {
	rec := &testutil.MetricsRecorder{}

	EmitRequest(rec, RequestMetric{Route: "GET /api/lots", Status: 200, Duration: 3 * time.Millisecond})
	EmitRequest(rec, RequestMetric{Status: 404})

	reqs := rec.Counts("http.request")
	require.Len(t, reqs, 2)
	assert.Equal(t, "GET /api/lots", reqs[0].Tags["route"])
	assert.Equal(t, "2xx", reqs[0].Tags["class"])
	assert.Equal(t, "unmatched", reqs[1].Tags["route"])
	assert.Equal(t, "404", reqs[1].Tags["status"])

	timings := rec.Timings("http.request.duration")
	require.Len(t, timings, 1)
	assert.Equal(t, 3*time.Millisecond, timings[0].Took)
}

func TestEmitMigrationRowAndSwept(t *testing.T) {
	rec := &testutil.MetricsRecorder{}

	EmitMigrationRow(rec, "migrated", true)
	EmitSessionsSwept(rec, 0)
	EmitSessionsSwept(rec, 4)

	rows := rec.Counts("migration.row")
	require.Len(t, rows, 1)
	assert.Equal(t, "true", rows[0].Tags["dry_run"])

	swept := rec.Counts("sessions.swept")
	require.Len(t, swept, 1)
	assert.Equal(t, int64(4), swept[0].Value)
}

func TestNilSinkIsIgnored(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitLogin(nil, LoginMetric{Method: MethodSSO})
		EmitRequest(nil, RequestMetric{Status: 500})
		EmitMigrationRow(nil, "failed", false)
		EmitSessionsSwept(nil, 3)
	})
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))

	src := map[string]string{"a": "1", "": "dropped"}
	out := CloneTags(src)
	assert.Equal(t, map[string]string{"a": "1"}, out)

	out["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
