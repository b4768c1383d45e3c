package automation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hs100/device"
	"hs100/home"
	"hs100/kasa"
	"hs100/kasa/kasatest"
)

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 1 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

func TestParseSetTopic(t *testing.T) {
	for _, tc := range []struct {
		topic string
		name  device.InternalName
		ok    bool
	}{
		{topic: "kasa/lamp/set", name: "lamp", ok: true},
		{topic: "kasa/living_room/lamp/set", name: "living_room/lamp", ok: true},
		{topic: "kasa/lamp", ok: false},
		{topic: "kasa/set", ok: false},
		{topic: "other/lamp/set", ok: false},
		{topic: "kasa/a/b/c/set", ok: false},
	} {
		name, ok := parseSetTopic("kasa", tc.topic)
		if ok != tc.ok {
			t.Errorf("Expected %t for %s, got %t", tc.ok, tc.topic, ok)
			continue
		}
		if ok && name != tc.name {
			t.Errorf("Expected %s for %s, got %s", tc.name, tc.topic, name)
		}
	}
}

func TestSetHandler(t *testing.T) {
	fake := kasatest.NewPlug(kasatest.HS100)
	s := fake.Serve()
	defer s.Close()

	h := home.New()
	c := &kasa.Client{Timeout: 2 * time.Second}
	h.AddDevice(device.NewOutlet("living_room/lamp", kasa.NewPlug(s.Addr, kasa.WithClient(c))))

	handle := handler(setHandler("kasa", h))

	handle(nil, message{topic: "kasa/living_room/lamp/set", payload: []byte(`{"state":false}`)})
	if state, _ := fake.SysInfo().Get("relay_state").Int(); state != 0 {
		t.Errorf("Expected relay_state 0, got %d", state)
	}

	handle(nil, message{topic: "kasa/living_room/lamp/set", payload: []byte(`{"state":true}`)})
	if state, _ := fake.SysInfo().Get("relay_state").Int(); state != 1 {
		t.Errorf("Expected relay_state 1, got %d", state)
	}

	// Neither of these reach the device
	handle(nil, message{topic: "kasa/living_room/lamp/set", payload: []byte(`not json`)})
	handle(nil, message{topic: "kasa/living_room/lamp/set"})
	handle(nil, message{topic: "kasa/unknown/set", payload: []byte(`{"state":false}`)})

	if n := len(s.Requests()); n != 2 {
		t.Errorf("Expected 2 requests, got %d", n)
	}
}

func TestStatusPayload(t *testing.T) {
	s := kasatest.NewPlug(kasatest.HS110).Serve()
	defer s.Close()

	h := home.New()
	c := &kasa.Client{Timeout: 2 * time.Second}
	h.AddDevice(device.NewOutlet("kitchen/kettle", kasa.NewPlug(s.Addr, kasa.WithClient(c))))

	statuses := h.Refresh(context.Background())
	if len(statuses) != 1 {
		t.Fatalf("Expected 1 status, got %d", len(statuses))
	}

	if topic := statusTopic("kasa", statuses[0]); topic != "kasa/kitchen/kettle" {
		t.Errorf("Expected kasa/kitchen/kettle, got %s", topic)
	}

	payload, err := json.Marshal(statuses[0])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if decoded["state"] != "ON" || decoded["power"] != 33.495623 {
		t.Errorf("Expected state ON and power 33.495623, got %s", payload)
	}
	if _, ok := decoded["error"]; ok {
		t.Errorf("Expected no error, got %s", payload)
	}
}
