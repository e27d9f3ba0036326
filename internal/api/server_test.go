package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"NetScope/internal/anomaly"
	"NetScope/internal/broadcast"
	"NetScope/internal/model"
)

func newTestServer(t *testing.T) (*httptest.Server, *anomaly.Detector, *broadcast.Broadcaster) {
	t.Helper()
	detector, err := anomaly.NewDetector(anomaly.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	hub := broadcast.New()
	ts := httptest.NewServer(NewServer(detector, hub, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, detector, hub
}

func TestRootEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "NetScope API" || body["status"] != "running" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var status model.SystemStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "degraded" || status.CaptureActive {
		t.Errorf("without capture the status should be degraded: %+v", status)
	}
	if status.CurrentInterface != nil || status.CurrentFilter != nil {
		t.Errorf("interface and filter should be null: %+v", status)
	}
	if status.ConnectedClients != 0 {
		t.Errorf("ConnectedClients = %d, want 0", status.ConnectedClients)
	}
}

func TestAnomalyStatsEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/anomaly/stats")
	if err != nil {
		t.Fatalf("GET /anomaly/stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status     string              `json:"status"`
		Statistics model.StatsSnapshot `json:"statistics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "active" {
		t.Errorf("status = %q, want active", body.Status)
	}
	if body.Statistics.MaxWindowSize != 60 || body.Statistics.MinSamples != 10 {
		t.Errorf("unexpected statistics: %+v", body.Statistics)
	}
}

func TestAnomalyStatsUninitialized(t *testing.T) {
	hub := broadcast.New()
	ts := httptest.NewServer(NewServer(nil, hub, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/anomaly/stats")
	if err != nil {
		t.Fatalf("GET /anomaly/stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestAnomalyConfigUpdate(t *testing.T) {
	ts, detector, _ := newTestServer(t)

	// Absent fields keep their current values.
	body := bytes.NewBufferString(`{"window_size": 120, "min_samples": 20}`)
	resp, err := http.Post(ts.URL+"/anomaly/config", "application/json", body)
	if err != nil {
		t.Fatalf("POST /anomaly/config: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	cfg := detector.Config()
	if cfg.WindowSize != 120 || cfg.MinSamples != 20 {
		t.Errorf("config not applied: %+v", cfg)
	}
	if cfg.Threshold != 3.0 || cfg.AlertCooldown != 30 {
		t.Errorf("unspecified fields should be preserved: %+v", cfg)
	}
}

func TestAnomalyConfigRejected(t *testing.T) {
	ts, detector, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"window_size": 5}`)
	resp, err := http.Post(ts.URL+"/anomaly/config", "application/json", body)
	if err != nil {
		t.Fatalf("POST /anomaly/config: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if got := detector.Config().WindowSize; got != 60 {
		t.Errorf("rejected update mutated config: window_size = %d", got)
	}
}

func TestCaptureSettingsUnavailable(t *testing.T) {
	ts, _, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"iface": "eth0"}`)
	resp, err := http.Post(ts.URL+"/capture/settings", "application/json", body)
	if err != nil {
		t.Fatalf("POST /capture/settings: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a capture controller", resp.StatusCode)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWebSocketStreaming(t *testing.T) {
	ts, _, hub := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/packets"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Count() == 1 })

	// Liveness probe: answered on the transport, not broadcast.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != "pong" {
		t.Fatalf("ping answered with %q, want pong", data)
	}

	// Published events reach the client verbatim.
	payload := `{"ts":1,"src":"10.0.0.1","dst":"10.0.0.2","proto":"UDP","length":64,"sport":null,"dport":null,"summary":"UDP 10.0.0.1 -> 10.0.0.2 len=64"}`
	hub.Publish([]byte(payload))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != payload {
		t.Errorf("received %q, want %q", data, payload)
	}

	// Disconnecting removes the subscriber from the hub.
	conn.Close()
	waitFor(t, func() bool { return hub.Count() == 0 })
}
