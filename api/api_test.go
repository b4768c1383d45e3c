package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hs100/device"
	"hs100/home"
	"hs100/kasa"
	"hs100/kasa/kasatest"
)

type fixture struct {
	api    *API
	home   *home.Home
	lamp   *kasatest.Plug
	kettle *kasatest.Plug
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		home:   home.New(),
		lamp:   kasatest.NewPlug(kasatest.HS100),
		kettle: kasatest.NewPlug(kasatest.HS110),
	}

	lamp := f.lamp.Serve()
	t.Cleanup(lamp.Close)
	kettle := f.kettle.Serve()
	t.Cleanup(kettle.Close)

	f.add("living_room/lamp", lamp.Addr)
	f.add("kitchen/kettle", kettle.Addr)

	f.api = New(f.home)
	t.Cleanup(f.api.Close)

	return f
}

func (f *fixture) add(name device.InternalName, addr string) {
	c := &kasa.Client{Timeout: 2 * time.Second}
	f.home.AddDevice(device.NewOutlet(name, kasa.NewPlug(addr, kasa.WithClient(c))))
}

func (f *fixture) do(method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.api.Router().ServeHTTP(rec, req)

	return rec
}

func TestListOutlets(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/outlets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var outlets []outletInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &outlets); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(outlets) != 2 {
		t.Fatalf("Expected 2 outlets, got %d", len(outlets))
	}
	if outlets[1].ID != "living_room/lamp" || outlets[1].Name != "Lamp" || outlets[1].Room != "Living Room" {
		t.Errorf("Expected the living room lamp, got %+v", outlets[1])
	}
}

func TestState(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/outlets/living_room/lamp/state", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"state":"ON"}` {
		t.Fatalf("Expected 200 {\"state\":\"ON\"}, got %d %s", rec.Code, rec.Body)
	}

	rec = f.do(http.MethodPut, "/outlets/living_room/lamp/state", `{"state":"OFF"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d %s", rec.Code, rec.Body)
	}
	if state, _ := f.lamp.SysInfo().Get("relay_state").Int(); state != 0 {
		t.Errorf("Expected relay_state 0, got %d", state)
	}

	rec = f.do(http.MethodGet, "/outlets/living_room/lamp/state", "")
	if strings.TrimSpace(rec.Body.String()) != `{"state":"OFF"}` {
		t.Errorf("Expected {\"state\":\"OFF\"}, got %s", rec.Body)
	}
}

func TestBadBody(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{``, `{"state":true}`, `{"state":"DIM"}`, `not json`} {
		rec := f.do(http.MethodPut, "/outlets/living_room/lamp/state", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", body, rec.Code)
		}
	}
}

func TestUnknownOutlet(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/outlets/garage/state", "/outlets/garage/sysinfo", "/outlets/garage/emeter"} {
		rec := f.do(http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", path, rec.Code)
		}
	}
}

func TestSysInfo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/outlets/kitchen/kettle/sysinfo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var info kasa.SysInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if info.Alias != "Mobile Plug" {
		t.Errorf("Expected Mobile Plug, got %s", info.Alias)
	}
}

func TestEmeter(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/outlets/kitchen/kettle/emeter", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var realtime map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &realtime); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if realtime["power"] != 33.495623 {
		t.Errorf("Expected 33.495623 W, got %v", realtime["power"])
	}

	rec = f.do(http.MethodGet, "/outlets/living_room/lamp/emeter", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d", rec.Code)
	}
}

func TestDeviceRejected(t *testing.T) {
	f := newFixture(t)

	s := kasatest.NewServer(func(req kasa.Value) kasa.Value {
		v, _ := kasa.ParseValue([]byte(`{"system":{"set_relay_state":{"err_code":-3,"err_msg":"invalid argument"}}}`))
		return v
	})
	defer s.Close()
	f.add("broken", s.Addr)

	rec := f.do(http.MethodPut, "/outlets/broken/state", `{"state":"ON"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d %s", rec.Code, rec.Body)
	}
}

func TestUnreachable(t *testing.T) {
	f := newFixture(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	f.add("gone", l.Addr().String())
	l.Close()

	rec := f.do(http.MethodGet, "/outlets/gone/state", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", rec.Code)
	}
}

func TestEvents(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(f.api.Router())
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/events?stream=" + StatusStream)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	f.home.Refresh(context.Background())

	names := make(map[device.InternalName]bool)
	reader := bufio.NewReader(resp.Body)
	for len(names) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: ")
		if !ok {
			continue
		}

		var status home.Status
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if status.State != kasa.StateOn {
			t.Errorf("Expected %s to be ON, got %s", status.Name, status.State)
		}
		names[status.Name] = true
	}

	if !names["kitchen/kettle"] || !names["living_room/lamp"] {
		t.Errorf("Expected a status for both outlets, got %v", names)
	}
}
