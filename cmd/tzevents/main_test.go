package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzevents/core"
	"tzevents/pkg/timezone"
)

var pastEvent = core.Event{
	Id:          "5f1c2d3e-0000-4000-8000-000000000001",
	ShareableId: "launch-party",
	Title:       "Launch",
	StartTime:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	Timezone:    "America/New_York",
	CreatedAt:   time.Date(2019, 12, 1, 12, 0, 0, 0, time.UTC),
	UpdatedAt:   time.Date(2019, 12, 1, 12, 0, 0, 0, time.UTC),
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []core.Event{pastEvent})
	})
	mux.HandleFunc("GET /api/events/share/{shareableId}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("shareableId") != pastEvent.ShareableId {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, pastEvent)
	})
	mux.HandleFunc("POST /api/events", func(w http.ResponseWriter, r *http.Request) {
		var request core.CreateEventRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeJSON(w, http.StatusBadRequest, core.NewError("invalid request body", err))
			return
		}

		event, err := core.ValidateEvent(request)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, core.NewError("event validation failed", err))
			return
		}

		event.Id = "7a000000-0000-4000-8000-000000000002"
		event.ShareableId = "team-sync"
		event.CreatedAt = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
		event.UpdatedAt = event.CreatedAt

		writeJSON(w, http.StatusCreated, event)
	})
	mux.HandleFunc("GET /api/timezone/list", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []timezone.Zone{
			{Id: "UTC", DisplayName: "UTC (UTC+00:00)"},
			{Id: "Asia/Tokyo", DisplayName: "Asia/Tokyo (UTC+09:00)"},
		})
	})
	mux.HandleFunc("GET /api/timezone/convert", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		conversion, err := core.ConvertText(query.Get("fromTimezone"), query.Get("toTimezone"), query.Get("dateTime"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, core.NewError("invalid conversion", err))
			return
		}
		writeJSON(w, http.StatusOK, conversion)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func unreachableURL(t *testing.T) string {
	t.Helper()

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	return server.URL
}

type result struct {
	code   int
	stdout string
	stderr string
}

func execute(t *testing.T, apiURL string, cacheFile string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	global := []string{"--api-url", apiURL, "--cache-file", cacheFile}

	code := run(context.Background(), append(global, args...), &stdout, &stderr)

	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Commands:")
	assert.Contains(t, stderr.String(), "show")

	stderr.Reset()
	assert.Equal(t, 2, run(context.Background(), []string{"launch"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "launch"`)

	assert.Equal(t, 0, run(context.Background(), []string{"--help"}, &stdout, &stderr))
	assert.Equal(t, 2, run(context.Background(), []string{"-o", "xml", "cached"}, &stdout, &stderr))
}

func TestRun_ConvertLocal(t *testing.T) {
	t.Parallel()

	res := execute(t, unreachableURL(t), filepath.Join(t.TempDir(), "cache.json"),
		"-o", "json", "convert", "--local", "--from", "America/New_York", "--to", "Asia/Tokyo", "--at", "2025-06-01T14:00")
	require.Equal(t, 0, res.code, res.stderr)

	var conversion core.ConvertResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &conversion))
	assert.Equal(t, "2025-06-02T03:00:00+09:00", conversion.OutputTime)
	assert.Equal(t, "2025-06-01T18:00:00Z", conversion.UtcTime)
}

func TestRun_ConvertRemote(t *testing.T) {
	t.Parallel()

	api := newAPI(t)
	cacheFile := filepath.Join(t.TempDir(), "cache.json")

	res := execute(t, api.URL, cacheFile, "convert", "--from", "America/New_York", "--to", "Asia/Tokyo", "--at", "2025-06-01T14:00")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "2025-06-01T14:00:00-04:00")
	assert.Contains(t, res.stdout, "2025-06-02T03:00:00+09:00")

	res = execute(t, api.URL, cacheFile, "convert", "--from", "Mars/Olympus", "--to", "UTC", "--at", "2025-06-01T14:00")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "api error 400")

	res = execute(t, api.URL, cacheFile, "convert", "--from", "UTC")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "--from, --to and --at are required")
}

func TestRun_Zones(t *testing.T) {
	t.Parallel()

	api := newAPI(t)

	res := execute(t, api.URL, filepath.Join(t.TempDir(), "cache.json"), "zones", "--filter", "tok")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Asia/Tokyo")
	assert.NotContains(t, res.stdout, "UTC (UTC+00:00)")
}

func TestRun_List(t *testing.T) {
	t.Parallel()

	api := newAPI(t)

	res := execute(t, api.URL, filepath.Join(t.TempDir(), "cache.json"), "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "SHAREABLE ID")
	assert.Contains(t, res.stdout, "launch-party")
	assert.Contains(t, res.stdout, "2019-12-31 19:00")
}

func TestRun_CreateThenShow(t *testing.T) {
	t.Parallel()

	api := newAPI(t)
	cacheFile := filepath.Join(t.TempDir(), "cache.json")

	res := execute(t, api.URL, cacheFile,
		"create", "--title", "Team sync", "--date", "2025-06-01", "--time", "18:00", "--timezone", "America/New_York")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, api.URL+"/api/events/share/team-sync")
	assert.NotContains(t, res.stderr, "warning")

	res = execute(t, api.URL, cacheFile, "-o", "json", "cached")
	require.Equal(t, 0, res.code, res.stderr)

	var cached []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &cached))
	require.Len(t, cached, 1)
	assert.Equal(t, "team-sync", cached[0]["id"])
	assert.Equal(t, "18:00", cached[0]["time"])

	// The server does not know team-sync, the cached copy is all there is.
	res = execute(t, unreachableURL(t), cacheFile, "show", "--once", "--zone", "Asia/Tokyo", "team-sync")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Team sync")
	assert.Contains(t, res.stdout, "(cache)")
}

func TestRun_CreateOffline(t *testing.T) {
	t.Parallel()

	offline := unreachableURL(t)
	cacheFile := filepath.Join(t.TempDir(), "cache.json")

	res := execute(t, offline, cacheFile,
		"create", "--title", "Standup", "--date", "2025-06-01", "--time", "09:30", "--timezone", "America/New_York")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "saved on this machine only")
	assert.NotContains(t, res.stdout, "Share")

	res = execute(t, offline, cacheFile, "-o", "yaml", "cached")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "name: Standup")
	assert.Contains(t, res.stdout, "timezone: America/New_York")

	res = execute(t, offline, cacheFile, "-o", "json", "cached")
	require.Equal(t, 0, res.code, res.stderr)

	var cached []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &cached))
	require.Len(t, cached, 1)

	id, _ := cached[0]["id"].(string)
	require.NotEmpty(t, id)

	res = execute(t, offline, cacheFile, "forget", id)
	assert.Equal(t, 0, res.code, res.stderr)

	res = execute(t, offline, cacheFile, "forget", id)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "no cached event")
}

func TestRun_ShowLocalOnlyEvent(t *testing.T) {
	t.Parallel()

	cacheFile := filepath.Join(t.TempDir(), "cache.json")

	res := execute(t, unreachableURL(t), cacheFile,
		"create", "--title", "Standup", "--date", "2025-06-01", "--time", "09:30", "--timezone", "America/New_York")
	require.Equal(t, 0, res.code, res.stderr)

	res = execute(t, unreachableURL(t), cacheFile, "-o", "json", "cached")
	require.Equal(t, 0, res.code, res.stderr)

	var cached []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &cached))
	require.Len(t, cached, 1)
	assert.Equal(t, "2025-06-01T13:30:00Z", cached[0]["start"])

	id, _ := cached[0]["id"].(string)

	// Reachable now, but the server never heard of the event.
	res = execute(t, newAPI(t).URL, cacheFile, "show", "--once", "--zone", "UTC", id)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "the server does not know event "+id)
	assert.Contains(t, res.stdout, "Standup")
	assert.Contains(t, res.stdout, "(cache)")
}

func TestRun_ShowCountdown(t *testing.T) {
	t.Parallel()

	api := newAPI(t)

	res := execute(t, api.URL, filepath.Join(t.TempDir(), "cache.json"), "show", "--zone", "Asia/Tokyo", "launch-party")
	require.Equal(t, 0, res.code, res.stderr)

	assert.Contains(t, res.stdout, "(server)")
	assert.Contains(t, res.stdout, "Launch is happening now!")
	assert.Contains(t, res.stdout, "Wed, 01 Jan 2020 09:00 JST")
	assert.Contains(t, res.stdout, "Tue, 31 Dec 2019 19:00 EST")
}

func TestRun_ShowUnknown(t *testing.T) {
	t.Parallel()

	api := newAPI(t)

	res := execute(t, api.URL, filepath.Join(t.TempDir(), "cache.json"), "show", "--zone", "UTC", "nope")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "event nope not found")

	res = execute(t, api.URL, filepath.Join(t.TempDir(), "cache.json"), "show")
	assert.Equal(t, 2, res.code)
}

func TestRun_OutputFromEnvironment(t *testing.T) {
	t.Setenv("TZEVENTS_OUTPUT", "json")

	res := execute(t, unreachableURL(t), filepath.Join(t.TempDir(), "cache.json"),
		"convert", "--local", "--from", "UTC", "--to", "Asia/Kolkata", "--at", "2025-06-01T00:00")
	require.Equal(t, 0, res.code, res.stderr)

	var conversion core.ConvertResponse
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &conversion))
	assert.Equal(t, "2025-06-01T05:30:00+05:30", conversion.OutputTime)
}
