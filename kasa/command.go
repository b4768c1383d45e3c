package kasa

import (
	"fmt"
	"strings"
)

// NewCommand builds {"<module>":{"<action>":<params>}}. Null params are sent
// as an empty object.
func NewCommand(module string, action string, params Value) Value {
	if params.IsNull() {
		params = ObjectValue(nil)
	}

	return ObjectValue(NewObject().Set(module, ObjectValue(NewObject().Set(action, params))))
}

// withChild addresses cmd to one outlet of a multi-outlet device.
func withChild(cmd Value, id string) Value {
	obj, _ := cmd.Object()

	scoped := NewObject().Set("context", ObjectValue(NewObject().Set("child_ids", ListValue(StringValue(id)))))
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		scoped.Set(key, v)
	}

	return ObjectValue(scoped)
}

// unwrap digs the result of module/action out of a response and strips its
// err_code.
func unwrap(resp Value, module string, action string) (Value, error) {
	m, ok := resp.Path(module)
	if !ok {
		return Value{}, fmt.Errorf("no %s in response: %s", module, resp)
	}

	result, ok := m.Path(action)
	if !ok {
		return Value{}, fmt.Errorf("no %s in %s response: %s", action, module, m)
	}

	if obj, ok := result.Object(); ok {
		obj = obj.Clone()
		obj.Delete("err_code")
		result = ObjectValue(obj)
	}

	return result, nil
}

type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

func stateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

type Child struct {
	ID     string `json:"id"`
	Alias  string `json:"alias"`
	State  *int   `json:"state"`
	OnTime int64  `json:"on_time"`
}

// SysInfo is the typed form of system/get_sysinfo. Fields missing on a
// particular model are left at their zero value, except for the pointer
// fields which stay nil so absence can be told apart from zero.
type SysInfo struct {
	Alias      string `json:"alias"`
	DevName    string `json:"dev_name"`
	Model      string `json:"model"`
	Type       string `json:"type"`
	MicType    string `json:"mic_type"`
	MAC        string `json:"mac"`
	MicMAC     string `json:"mic_mac"`
	SWVersion  string `json:"sw_ver"`
	HWVersion  string `json:"hw_ver"`
	DeviceID   string `json:"deviceId"`
	HWID       string `json:"hwId"`
	FWID       string `json:"fwId"`
	OEMID      string `json:"oemId"`
	Feature    string `json:"feature"`
	ActiveMode string `json:"active_mode"`

	OnTime   int64 `json:"on_time"`
	Updating int   `json:"updating"`

	RelayState *int `json:"relay_state"`
	LEDOff     *int `json:"led_off"`

	RSSI       *int     `json:"rssi"`
	Brightness *int     `json:"brightness"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	LatitudeI  *float64 `json:"latitude_i"`
	LongitudeI *float64 `json:"longitude_i"`

	Children []Child `json:"children"`
}

func (s SysInfo) Features() []string {
	if s.Feature == "" {
		return nil
	}

	return strings.Split(s.Feature, ":")
}

func (s SysInfo) HasEmeter() bool {
	for _, f := range s.Features() {
		if f == "ENE" {
			return true
		}
	}

	return false
}

func (s SysInfo) IsDimmable() bool {
	return s.Brightness != nil
}

func (s SysInfo) child(id string) (Child, bool) {
	for _, c := range s.Children {
		if c.ID == id {
			return c, true
		}
	}

	return Child{}, false
}
