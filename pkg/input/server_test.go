package input

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, <-chan Sample) {
	t.Helper()
	samples := make(chan Sample, 16)
	s := NewServer(func(smp Sample) { samples <- smp }, map[string]int{"servos": 8}, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, samples
}

func dial(t *testing.T, ts *httptest.Server) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/control"
	return websocket.DefaultDialer.Dial(url, nil)
}

func receive(t *testing.T, samples <-chan Sample) Sample {
	t.Helper()
	select {
	case s := <-samples:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sample")
		return Sample{}
	}
}

func TestServer_ForwardsSamples(t *testing.T) {
	ts, samples := newTestServer(t)

	ws, _, err := dial(t, ts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	raw := Raw{
		Axes:           RawAxes{Left: RawJoystick{Angle: 90, Distance: 3, MaxDistance: 6}},
		ButtonsPressed: []Button{"lean"},
	}
	if err := ws.WriteJSON(raw); err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteJSON(raw); err != nil {
		t.Fatal(err)
	}

	first := receive(t, samples)
	if first.Elapsed != 0 {
		t.Errorf("first sample elapsed = %v, want 0", first.Elapsed)
	}
	if first.Raw.Axes.Left != raw.Axes.Left || len(first.Raw.ButtonsPressed) != 1 {
		t.Errorf("first sample = %+v, want %+v", first.Raw, raw)
	}
	if second := receive(t, samples); second.Elapsed < 0 {
		t.Errorf("second sample elapsed = %v, want >= 0", second.Elapsed)
	}
}

func TestServer_SingleController(t *testing.T) {
	ts, samples := newTestServer(t)

	first, _, err := dial(t, ts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_, resp, err := dial(t, ts)
	if err == nil {
		t.Fatal("second controller connected, want rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("second dial response = %v, want 409", resp)
	}

	first.Close()

	// The drop releases every input.
	if s := receive(t, samples); len(s.Raw.ButtonsPressed) != 0 || s.Raw.Axes != (RawAxes{}) {
		t.Errorf("disconnect sample = %+v, want zero input", s.Raw)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		ws, _, err := dial(t, ts)
		if err == nil {
			ws.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reconnect after disconnect: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_Info(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/info.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var info map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info["servos"] != 8 {
		t.Errorf("info = %v, want servos 8", info)
	}
}
