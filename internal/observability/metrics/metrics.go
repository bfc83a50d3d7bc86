// Package metrics names and tags the counters and timings the service emits.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/lotledger/lotledger/internal/observability/errors"
	"github.com/lotledger/lotledger/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Login methods.
const (
	MethodPassword = "password"
	MethodGuest    = "guest"
	MethodSSO      = "sso"
)

// LoginMetric describes one login attempt.
type LoginMetric struct {
	Method   string
	Upgraded bool
	Err      error
}

// EmitLogin counts a login attempt, tagging failures with their error class.
func EmitLogin(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"method": in.Method, "result": ResultSuccess}
	if in.Err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("auth.login", 1, tags)
	if in.Upgraded {
		sink.Count("auth.credential_upgraded", 1, nil)
	}
}

// EmitMigrationRow counts one credential migration row by outcome.
func EmitMigrationRow(sink statsd.Sink, outcome string, dryRun bool) {
	if sink == nil {
		return
	}
	sink.Count("migration.row", 1, map[string]string{
		"outcome": outcome,
		"dry_run": strconv.FormatBool(dryRun),
	})
}

// RequestMetric describes one served HTTP request.
type RequestMetric struct {
	Route    string
	Status   int
	Duration time.Duration
}

// EmitRequest records a request count and latency keyed by route pattern.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}
	route := in.Route
	if route == "" {
		route = "unmatched"
	}
	tags := map[string]string{
		"route":  route,
		"status": strconv.Itoa(in.Status),
		"class":  strconv.Itoa(in.Status/100) + "xx",
	}
	sink.Count("http.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("http.request.duration", in.Duration, CloneTags(tags))
	}
}

// EmitSessionsSwept counts sessions removed by the reaper.
func EmitSessionsSwept(sink statsd.Sink, removed int) {
	if sink == nil || removed <= 0 {
		return
	}
	sink.Count("sessions.swept", int64(removed), nil)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
