package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gpsreader/internal/gps"
)

type fakeFix struct{ snap gps.Snapshot }

func (f fakeFix) Snapshot() gps.Snapshot { return f.snap }

type fakeCounters map[string]uint64

func (c fakeCounters) Counts() map[string]uint64 { return c }

func newTestServer(t *testing.T, hub *Hub, logs *LogBuffer) *httptest.Server {
	t.Helper()
	st := NewStatus(
		fakeFix{gps.Snapshot{Enabled: true, Valid: true, Source: "tcp", LatDeg: 48.1173, LonDeg: 11.5167, Cycles: 7}},
		fakeCounters{"dropped_invalid": 2},
	)
	st.SetUDPDest("127.0.0.1:4000")
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "gpsreader_sentences_total 1\n")
	})
	ts := httptest.NewServer(Handler(st, hub, logs, metrics))
	t.Cleanup(ts.Close)
	return ts
}

func TestAPIStatus(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "gpsreader" {
		t.Fatalf("service=%q", snap.Service)
	}
	if snap.UDPDest != "127.0.0.1:4000" {
		t.Fatalf("udp_dest=%q", snap.UDPDest)
	}
	if !snap.GPS.Valid || snap.GPS.Cycles != 7 || snap.GPS.Source != "tcp" {
		t.Fatalf("gps=%+v", snap.GPS)
	}
	if snap.Counters["dropped_invalid"] != 2 {
		t.Fatalf("counters=%v", snap.Counters)
	}
}

func TestAPIStatus_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || resp.Header.Get("Allow") != http.MethodGet {
		t.Fatalf("status code=%d allow=%q", resp.StatusCode, resp.Header.Get("Allow"))
	}
}

func TestRootPageAndNotFound(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "lat=48.117300") {
		t.Fatalf("status code=%d body=%s", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get /nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestOptionalEndpoints(t *testing.T) {
	logs := NewLogBuffer(10)
	_, _ = io.WriteString(logs, "INFO gps enabled\n")
	ts := newTestServer(t, nil, logs)

	for path, want := range map[string]string{
		"/metrics":              "gpsreader_sentences_total 1",
		"/api/logs?format=text": "INFO gps enabled",
		"/api/about":            `"service": "gpsreader"`,
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if !strings.Contains(string(body), want) {
			t.Fatalf("%s: body=%q want %q", path, body, want)
		}
	}

	// No hub: /ws is not routed.
	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("get /ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("/ws status code=%d", resp.StatusCode)
	}
}

func TestWebsocketStreamsCommittedFixes(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(gps.Snapshot{Cycles: 1})
	ts := newTestServer(t, hub, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var got gps.Snapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read last: %v", err)
	}
	if got.Cycles != 1 {
		t.Fatalf("first message cycles=%d want 1", got.Cycles)
	}

	hub.Publish(gps.Snapshot{Cycles: 2, Valid: true})
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if got.Cycles != 2 || !got.Valid {
		t.Fatalf("update=%+v", got)
	}

	conn.Close()
	deadline := time.Now().Add(3 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not released")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
