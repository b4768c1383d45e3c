package kasa

import (
	"strings"
)

// Older firmware reports emeter readings in base units (W, V, A, kWh) under
// plain names, newer firmware in milli units (mW, mV, mA, Wh) with a unit
// suffix. EmeterStatus answers for either spelling.
type EmeterStatus struct {
	raw Value
}

var emeterKeys = map[string]bool{
	"voltage_mv": true,
	"power_mw":   true,
	"current_ma": true,
	"energy_wh":  true,
	"total_wh":   true,
	"voltage":    true,
	"power":      true,
	"current":    true,
	"total":      true,
	"energy":     true,
}

func NewEmeterStatus(v Value) EmeterStatus {
	return EmeterStatus{raw: v}
}

// Get returns the reading called name, converting from the other unit style
// when the device did not report it directly.
func (e EmeterStatus) Get(name string) (float64, bool) {
	if v, ok := e.raw.Path(name); ok {
		return v.Float()
	}

	if !emeterKeys[name] {
		return 0, false
	}

	// power_mw from power
	if i := strings.IndexByte(name, '_'); i >= 0 {
		base, ok := e.raw.Path(name[:i])
		if !ok {
			return 0, false
		}

		f, ok := base.Float()
		return f * 1000, ok
	}

	// power from power_mw
	obj, _ := e.raw.Object()
	for _, key := range obj.Keys() {
		if strings.HasPrefix(key, name+"_") {
			v, _ := obj.Get(key)
			f, ok := v.Float()
			return f / 1000, ok
		}
	}

	return 0, false
}

// Power in W
func (e EmeterStatus) Power() (float64, bool) {
	return e.Get("power")
}

// Voltage in V
func (e EmeterStatus) Voltage() (float64, bool) {
	return e.Get("voltage")
}

// Current in A
func (e EmeterStatus) Current() (float64, bool) {
	return e.Get("current")
}

// Total in kWh
func (e EmeterStatus) Total() (float64, bool) {
	return e.Get("total")
}

func (e EmeterStatus) Raw() Value {
	return e.raw
}

func (e EmeterStatus) MarshalJSON() ([]byte, error) {
	return e.raw.MarshalJSON()
}
