package kasa

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ErrNotDimmable is returned by brightness calls on plugs without a dimmer.
var ErrNotDimmable = errors.New("device is not dimmable")

// Plug is a handle on one smart plug, switch, or one outlet of a strip.
// Every call is an independent exchange with the device.
type Plug struct {
	Host string

	childID  string
	client   *Client
	cache    *ttlcache.Cache[string, Value]
	cacheTTL time.Duration
}

// Option configures a Plug in NewPlug.
type Option func(*Plug)

func WithClient(c *Client) Option {
	return func(p *Plug) {
		p.client = c
	}
}

// WithChild addresses a single outlet of a multi-outlet device.
func WithChild(id string) Option {
	return func(p *Plug) {
		p.childID = id
	}
}

// WithCacheTTL keeps the results of get_* actions for ttl. Any other action
// purges the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *Plug) {
		p.cacheTTL = ttl
		if ttl <= 0 {
			p.cache = nil
			return
		}

		p.cache = ttlcache.New(
			ttlcache.WithTTL[string, Value](ttl),
			ttlcache.WithDisableTouchOnHit[string, Value](),
		)
	}
}

// NewPlug returns a handle on the device at host, "host" or "host:port".
// Nothing is sent until the first call.
func NewPlug(host string, opts ...Option) *Plug {
	p := &Plug{Host: host, client: DefaultClient}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Query runs module/action and returns its unwrapped result without err_code.
func (p *Plug) Query(ctx context.Context, module string, action string, params Value) (Value, error) {
	op := module + "/" + action
	cacheable := strings.HasPrefix(action, "get_")
	key := cacheKey(op, params)

	if p.cache != nil {
		if cacheable {
			if item := p.cache.Get(key); item != nil {
				return item.Value().clone(), nil
			}
		} else {
			p.cache.DeleteAll()
		}
	}

	cmd := NewCommand(module, action, params)
	if p.childID != "" {
		cmd = withChild(cmd, p.childID)
	}

	resp, err := p.client.execute(ctx, p.Host, op, cmd)
	if err != nil {
		return Value{}, err
	}

	result, err := unwrap(resp, module, action)
	if err != nil {
		return Value{}, p.malformed(op, err)
	}

	if p.cache != nil && cacheable {
		p.cache.Set(key, result.clone(), ttlcache.DefaultTTL)
	}

	return result, nil
}

// Results of the same action differ by params, get_daystat for one month
// is not get_daystat for another.
func cacheKey(op string, params Value) string {
	if params.IsNull() {
		params = ObjectValue(nil)
	}

	return op + " " + params.String()
}

func (p *Plug) malformed(op string, err error) error {
	return &Error{Kind: MalformedResponse, Op: op, Addr: p.client.address(p.Host), Err: err}
}

func (p *Plug) decode(v Value, op string, into any) error {
	if err := v.Decode(into); err != nil {
		return p.malformed(op, err)
	}

	return nil
}

// SystemInfo returns the raw system/get_sysinfo mapping.
func (p *Plug) SystemInfo(ctx context.Context) (Value, error) {
	return p.Query(ctx, "system", "get_sysinfo", NullValue())
}

func (p *Plug) Info(ctx context.Context) (SysInfo, error) {
	v, err := p.SystemInfo(ctx)
	if err != nil {
		return SysInfo{}, err
	}

	var info SysInfo
	if err := p.decode(v, "system/get_sysinfo", &info); err != nil {
		return SysInfo{}, err
	}

	return info, nil
}

func (p *Plug) State(ctx context.Context) (State, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return "", err
	}

	if p.childID == "" {
		if info.RelayState == nil {
			return "", p.malformed("system/get_sysinfo", errors.New("no relay_state in sysinfo"))
		}

		return stateOf(*info.RelayState != 0), nil
	}

	child, ok := info.child(p.childID)
	if !ok {
		return "", fmt.Errorf("%s: no outlet with id %s", p.Host, p.childID)
	}
	if child.State == nil {
		return "", p.malformed("system/get_sysinfo", fmt.Errorf("no state for outlet %s", p.childID))
	}

	return stateOf(*child.State != 0), nil
}

// Children returns a handle per outlet of a multi-outlet device, in the
// order the device lists them. Single outlet plugs have none.
func (p *Plug) Children(ctx context.Context) ([]*Plug, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return nil, err
	}

	children := make([]*Plug, 0, len(info.Children))
	for _, c := range info.Children {
		if c.ID == "" {
			return nil, p.malformed("system/get_sysinfo", errors.New("outlet without id"))
		}

		children = append(children, NewPlug(p.Host, WithClient(p.client), WithChild(c.ID), WithCacheTTL(p.cacheTTL)))
	}

	return children, nil
}

func (p *Plug) IsOn(ctx context.Context) (bool, error) {
	state, err := p.State(ctx)
	return state == StateOn, err
}

func (p *Plug) SetState(ctx context.Context, on bool) error {
	state := int64(0)
	if on {
		state = 1
	}

	_, err := p.Query(ctx, "system", "set_relay_state", ObjectValue(NewObject().Set("state", IntValue(state))))
	return err
}

func (p *Plug) TurnOn(ctx context.Context) error {
	return p.SetState(ctx, true)
}

func (p *Plug) TurnOff(ctx context.Context) error {
	return p.SetState(ctx, false)
}

// EnergyRealtime returns the raw emeter/get_realtime mapping. Only metering
// models (HS110) answer it.
func (p *Plug) EnergyRealtime(ctx context.Context) (Value, error) {
	return p.Query(ctx, "emeter", "get_realtime", NullValue())
}

func (p *Plug) Alias(ctx context.Context) (string, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return "", err
	}

	if p.childID != "" {
		if child, ok := info.child(p.childID); ok {
			return child.Alias, nil
		}
	}

	return info.Alias, nil
}

func (p *Plug) SetAlias(ctx context.Context, alias string) error {
	_, err := p.Query(ctx, "system", "set_dev_alias", ObjectValue(NewObject().Set("alias", StringValue(alias))))
	return err
}

func (p *Plug) Model(ctx context.Context) (string, error) {
	info, err := p.Info(ctx)
	return info.Model, err
}

// MAC returns the address as 01:23:45:67:89:ab. Some models only report it
// as plain hex in mic_mac.
func (p *Plug) MAC(ctx context.Context) (string, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return "", err
	}

	if info.MAC != "" {
		return info.MAC, nil
	}

	if info.MicMAC != "" {
		b, err := hex.DecodeString(info.MicMAC)
		if err != nil {
			return "", p.malformed("system/get_sysinfo", err)
		}

		parts := make([]string, len(b))
		for i, c := range b {
			parts[i] = fmt.Sprintf("%02x", c)
		}
		return strings.Join(parts, ":"), nil
	}

	return "", p.malformed("system/get_sysinfo", errors.New("no mac in sysinfo"))
}

func (p *Plug) SetMAC(ctx context.Context, mac string) error {
	_, err := p.Query(ctx, "system", "set_mac_addr", ObjectValue(NewObject().Set("mac", StringValue(mac))))
	return err
}

var hwInfoKeys = []string{"sw_ver", "hw_ver", "mac", "mic_mac", "type", "mic_type", "hwId", "fwId", "oemId", "dev_name"}

// HWInfo returns the hardware and firmware identification subset of sysinfo.
func (p *Plug) HWInfo(ctx context.Context) (Value, error) {
	info, err := p.SystemInfo(ctx)
	if err != nil {
		return Value{}, err
	}

	hw := NewObject()
	for _, key := range hwInfoKeys {
		if v, ok := info.Path(key); ok {
			hw.Set(key, v)
		}
	}

	return ObjectValue(hw), nil
}

// Location returns latitude and longitude in degrees. ok is false when the
// device does not report a location.
func (p *Plug) Location(ctx context.Context) (lat float64, lon float64, ok bool, err error) {
	info, err := p.Info(ctx)
	if err != nil {
		return 0, 0, false, err
	}

	switch {
	case info.Latitude != nil && info.Longitude != nil:
		return *info.Latitude, *info.Longitude, true, nil
	case info.LatitudeI != nil && info.LongitudeI != nil:
		// Integer variant is scaled by 10^4
		return *info.LatitudeI / 10000, *info.LongitudeI / 10000, true, nil
	}

	return 0, 0, false, nil
}

// RSSI returns the WiFi signal strength, ok is false on models that do not
// report it.
func (p *Plug) RSSI(ctx context.Context) (rssi int, ok bool, err error) {
	info, err := p.Info(ctx)
	if err != nil || info.RSSI == nil {
		return 0, false, err
	}

	return *info.RSSI, true, nil
}

// OnSince returns when the relay was last switched on.
func (p *Plug) OnSince(ctx context.Context) (time.Time, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return time.Time{}, err
	}

	onTime := info.OnTime
	if p.childID != "" {
		if child, ok := info.child(p.childID); ok {
			onTime = child.OnTime
		}
	}

	return time.Now().Add(-time.Duration(onTime) * time.Second), nil
}

// LED reports whether the status LED is enabled (night mode off).
func (p *Plug) LED(ctx context.Context) (bool, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return false, err
	}
	if info.LEDOff == nil {
		return false, p.malformed("system/get_sysinfo", errors.New("no led_off in sysinfo"))
	}

	return *info.LEDOff == 0, nil
}

func (p *Plug) SetLED(ctx context.Context, on bool) error {
	off := int64(1)
	if on {
		off = 0
	}

	_, err := p.Query(ctx, "system", "set_led_off", ObjectValue(NewObject().Set("off", IntValue(off))))
	return err
}

// Reboot restarts the device after delay seconds. With a delay of zero the
// device reboots without answering, which surfaces as an error.
func (p *Plug) Reboot(ctx context.Context, delay int) error {
	_, err := p.Query(ctx, "system", "reboot", ObjectValue(NewObject().Set("delay", IntValue(int64(delay)))))
	return err
}

// Time returns the wall clock of the device. The device does not report a
// zone, the result is placed in time.Local.
func (p *Plug) Time(ctx context.Context) (time.Time, error) {
	v, err := p.Query(ctx, "time", "get_time", NullValue())
	if err != nil {
		return time.Time{}, err
	}

	var t struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Day   int `json:"mday"`
		Hour  int `json:"hour"`
		Min   int `json:"min"`
		Sec   int `json:"sec"`
	}
	if err := p.decode(v, "time/get_time", &t); err != nil {
		return time.Time{}, err
	}

	return time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Min, t.Sec, 0, time.Local), nil
}

func (p *Plug) Timezone(ctx context.Context) (Value, error) {
	return p.Query(ctx, "time", "get_timezone", NullValue())
}

func (p *Plug) IsDimmable(ctx context.Context) (bool, error) {
	info, err := p.Info(ctx)
	return info.IsDimmable(), err
}

// Brightness returns the dimmer level, 0-100.
func (p *Plug) Brightness(ctx context.Context) (int, error) {
	info, err := p.Info(ctx)
	if err != nil {
		return 0, err
	}

	if !info.IsDimmable() {
		return 0, ErrNotDimmable
	}

	return *info.Brightness, nil
}

// SetBrightness sets the dimmer level to 1-100, turning the device on first.
func (p *Plug) SetBrightness(ctx context.Context, brightness int) error {
	if brightness < 1 || brightness > 100 {
		return fmt.Errorf("brightness %d is not within 1-100", brightness)
	}

	dimmable, err := p.IsDimmable(ctx)
	if err != nil {
		return err
	}
	if !dimmable {
		return ErrNotDimmable
	}

	if err := p.TurnOn(ctx); err != nil {
		return err
	}

	_, err = p.Query(ctx, "smartlife.iot.dimmer", "set_brightness", ObjectValue(NewObject().Set("brightness", IntValue(int64(brightness)))))
	return err
}

func (p *Plug) HasEmeter(ctx context.Context) (bool, error) {
	info, err := p.Info(ctx)
	return info.HasEmeter(), err
}

func (p *Plug) requireEmeter(ctx context.Context) error {
	ok, err := p.HasEmeter(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoEmeter
	}

	return nil
}

func (p *Plug) Emeter(ctx context.Context) (EmeterStatus, error) {
	if err := p.requireEmeter(ctx); err != nil {
		return EmeterStatus{}, err
	}

	v, err := p.EnergyRealtime(ctx)
	if err != nil {
		return EmeterStatus{}, err
	}

	return NewEmeterStatus(v), nil
}

// CurrentConsumption returns the current power draw in W.
func (p *Plug) CurrentConsumption(ctx context.Context) (float64, error) {
	status, err := p.Emeter(ctx)
	if err != nil {
		return 0, err
	}

	power, ok := status.Power()
	if !ok {
		return 0, p.malformed("emeter/get_realtime", errors.New("no power reading"))
	}

	return power, nil
}

// DailyStats maps day of month to energy used, in kWh or Wh.
func (p *Plug) DailyStats(ctx context.Context, year int, month int, kwh bool) (map[int]float64, error) {
	params := NewObject().Set("month", IntValue(int64(month))).Set("year", IntValue(int64(year)))
	return p.stats(ctx, "get_daystat", params, "day_list", "day", kwh)
}

// MonthlyStats maps month to energy used, in kWh or Wh.
func (p *Plug) MonthlyStats(ctx context.Context, year int, kwh bool) (map[int]float64, error) {
	params := NewObject().Set("year", IntValue(int64(year)))
	return p.stats(ctx, "get_monthstat", params, "month_list", "month", kwh)
}

func (p *Plug) stats(ctx context.Context, action string, params *Object, list string, index string, kwh bool) (map[int]float64, error) {
	if err := p.requireEmeter(ctx); err != nil {
		return nil, err
	}

	v, err := p.Query(ctx, "emeter", action, ObjectValue(params))
	if err != nil {
		return nil, err
	}

	key := "energy_wh"
	if kwh {
		key = "energy"
	}

	entries, _ := v.Get(list).List()
	data := make(map[int]float64, len(entries))
	for _, entry := range entries {
		i, ok := entry.Get(index).Int()
		if !ok {
			continue
		}

		if energy, ok := NewEmeterStatus(entry).Get(key); ok {
			data[int(i)] = energy
		}
	}

	return data, nil
}

func (p *Plug) EraseEmeterStats(ctx context.Context) error {
	if err := p.requireEmeter(ctx); err != nil {
		return err
	}

	_, err := p.Query(ctx, "emeter", "erase_emeter_stat", NullValue())
	return err
}
