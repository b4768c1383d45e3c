package kasatest

import (
	"fmt"
	"strings"
	"sync"

	"hs100/kasa"
)

// Captured sysinfo of real devices.
const (
	HS100 = `{"active_mode":"schedule","alias":"My Smart Plug","dev_name":"Wi-Fi Smart Plug",` +
		`"deviceId":"80061E93E28EEBA9FA1929D15C4678C7172A8AF2","feature":"TIM",` +
		`"fwId":"BFF24826FBC561803E49379DBE74FD71","hwId":"22603EA5E716DEAEA6642A30BE87AFCA",` +
		`"hw_ver":"1.0","icon_hash":"","latitude":12.2,"led_off":0,"longitude":12.2,` +
		`"mac":"50:C7:BF:11:22:33","model":"HS100(EU)","oemId":"812A90EB2FCF306A993FAD8748024B07",` +
		`"on_time":255419,"relay_state":1,"sw_ver":"1.0.8 Build 151101 Rel.24452",` +
		`"type":"smartplug","updating":0}`

	HS110 = `{"active_mode":"schedule","alias":"Mobile Plug",` +
		`"dev_name":"Wi-Fi Smart Plug With Energy Monitoring",` +
		`"deviceId":"800654F32938FCBA8F7327887A386476172B5B53","err_code":0,"feature":"TIM:ENE",` +
		`"fwId":"E16EB3E95DB6B47B5B72B3FD86FD1438","hwId":"60FF6B258734EA6880E186F8C96DDC61",` +
		`"hw_ver":"1.0","icon_hash":"","latitude":12.2,"led_off":0,"longitude":-12.2,` +
		`"mac":"AA:BB:CC:11:22:33","model":"HS110(US)","oemId":"FFF22CFF774A0B89F7624BFC6F50D5DE",` +
		`"on_time":9022,"relay_state":1,"rssi":-61,"sw_ver":"1.0.8 Build 151113 Rel.24658",` +
		`"type":"IOT.SMARTPLUGSWITCH","updating":0}`

	HS220 = `{"sw_ver":"1.5.7 Build 180912 Rel.104837","hw_ver":"1.0","type":"IOT.SMARTPLUGSWITCH",` +
		`"model":"HS220(US)","mac":"B0:4E:26:11:22:33","dev_name":"Smart Wi-Fi Dimmer",` +
		`"alias":"Living room dimmer","relay_state":0,"brightness":25,"on_time":0,` +
		`"active_mode":"none","feature":"TIM","updating":0,"icon_hash":"","rssi":-53,` +
		`"led_off":0,"longitude_i":-123456,"latitude_i":123456,` +
		`"hwId":"84DCCF37225C9E55319617F7D5C095BD","fwId":"00000000000000000000000000000000",` +
		`"deviceId":"800695154E6B882428E30F850473F34019A9E999","oemId":"3B13224B2807E0D48A9DD06EBD344CD6"}`

	realtime = `{"current":0.268587,"voltage":125.836131,"power":33.495623,"total":0.199}`

	daystat = `{"day_list":[{"year":2016,"month":11,"day":24,"energy":0.026},` +
		`{"year":2016,"month":11,"day":25,"energy":0.109}]}`

	monthstat = `{"month_list":[{"year":2016,"month":11,"energy":1.089},` +
		`{"year":2016,"month":12,"energy":1.582}]}`

	devTime = `{"year":2016,"month":11,"mday":24,"hour":13,"min":37,"sec":0}`
)

// Plug is a stateful fake device. It answers the system, emeter, time and
// rule modules closely enough for client code to be exercised against it.
type Plug struct {
	mu      sync.Mutex
	sysinfo *kasa.Object
	rules   map[string][]*kasa.Object
	lastID  int
}

// NewPlug starts from a sysinfo document such as HS100 or HS110.
func NewPlug(sysinfo string) *Plug {
	v, err := kasa.ParseValue([]byte(sysinfo))
	if err != nil {
		panic(err)
	}

	obj, _ := v.Object()
	obj.Delete("err_code")

	return &Plug{sysinfo: obj, rules: make(map[string][]*kasa.Object)}
}

// Serve starts a Server backed by p.
func (p *Plug) Serve() *Server {
	return NewServer(p.Handle)
}

// SysInfo returns a copy of the current sysinfo.
func (p *Plug) SysInfo() kasa.Value {
	p.mu.Lock()
	defer p.mu.Unlock()

	return kasa.ObjectValue(p.sysinfo.Clone())
}

func (p *Plug) Handle(req kasa.Value) kasa.Value {
	p.mu.Lock()
	defer p.mu.Unlock()

	resp := kasa.NewObject()
	modules, _ := req.Object()

	for _, module := range modules.Keys() {
		if module == "context" {
			continue
		}

		handler, ok := p.modules()[module]
		if !ok {
			resp.Set(module, failure(-1, "module not support"))
			continue
		}

		results := kasa.NewObject()
		actions, _ := req.Get(module).Object()
		for _, action := range actions.Keys() {
			results.Set(action, handler(action, req.Get(module).Get(action)))
		}
		resp.Set(module, kasa.ObjectValue(results))
	}

	return kasa.ObjectValue(resp)
}

type moduleHandler func(action string, params kasa.Value) kasa.Value

func (p *Plug) modules() map[string]moduleHandler {
	m := map[string]moduleHandler{
		"system":     p.system,
		"time":       p.time,
		"schedule":   p.ruleModule("schedule"),
		"count_down": p.ruleModule("count_down"),
		"anti_theft": p.ruleModule("anti_theft"),
	}

	if p.hasEmeter() {
		m["emeter"] = p.emeter
	}

	if _, ok := p.sysinfo.Get("brightness"); ok {
		m["smartlife.iot.dimmer"] = p.dimmer
	}

	return m
}

func (p *Plug) hasEmeter() bool {
	v, _ := p.sysinfo.Get("feature")
	feature, _ := v.Str()

	for _, f := range strings.Split(feature, ":") {
		if f == "ENE" {
			return true
		}
	}

	return false
}

func (p *Plug) system(action string, params kasa.Value) kasa.Value {
	switch action {
	case "get_sysinfo":
		return success(kasa.ObjectValue(p.sysinfo.Clone()))
	case "set_relay_state":
		return p.set("relay_state", params.Get("state"))
	case "set_led_off":
		return p.set("led_off", params.Get("off"))
	case "set_dev_alias":
		return p.set("alias", params.Get("alias"))
	case "set_mac_addr":
		return p.set("mac", params.Get("mac"))
	case "reboot":
		return success(kasa.NullValue())
	}

	return failure(-2, "member not support")
}

func (p *Plug) set(key string, v kasa.Value) kasa.Value {
	if v.IsNull() {
		return failure(-3, "invalid argument")
	}

	p.sysinfo.Set(key, v)
	return success(kasa.NullValue())
}

func (p *Plug) emeter(action string, params kasa.Value) kasa.Value {
	switch action {
	case "get_realtime":
		return success(parse(realtime))
	case "get_daystat":
		return success(parse(daystat))
	case "get_monthstat":
		return success(parse(monthstat))
	case "erase_emeter_stat":
		return success(kasa.NullValue())
	}

	return failure(-2, "member not support")
}

func (p *Plug) time(action string, params kasa.Value) kasa.Value {
	switch action {
	case "get_time":
		return success(parse(devTime))
	case "get_timezone":
		return success(parse(`{"index":39}`))
	}

	return failure(-2, "member not support")
}

// Rules returns a copy of the rules stored for module.
func (p *Plug) Rules(module string) []kasa.Value {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rules []kasa.Value
	for _, rule := range p.rules[module] {
		rules = append(rules, kasa.ObjectValue(rule.Clone()))
	}

	return rules
}

func (p *Plug) ruleModule(module string) moduleHandler {
	return func(action string, params kasa.Value) kasa.Value {
		rules := p.rules[module]

		find := func() int {
			id, _ := params.Get("id").Str()
			for i, rule := range rules {
				v, _ := rule.Get("id")
				if s, _ := v.Str(); s == id {
					return i
				}
			}
			return -1
		}

		switch action {
		case "get_rules":
			list := make([]kasa.Value, 0, len(rules))
			for _, rule := range rules {
				list = append(list, kasa.ObjectValue(rule.Clone()))
			}
			return success(kasa.ObjectValue(kasa.NewObject().
				Set("rule_list", kasa.ListValue(list...)).
				Set("enable", kasa.IntValue(1))))
		case "add_rule":
			rule, ok := params.Object()
			if !ok {
				return failure(-3, "invalid argument")
			}
			p.lastID++
			id := fmt.Sprintf("%032X", p.lastID)
			rule = rule.Clone().Set("id", kasa.StringValue(id))
			p.rules[module] = append(rules, rule)
			return success(kasa.ObjectValue(kasa.NewObject().Set("id", kasa.StringValue(id))))
		case "edit_rule":
			i := find()
			rule, ok := params.Object()
			if i < 0 || !ok {
				return failure(-14, "entry not exist")
			}
			rules[i] = rule.Clone()
			return success(kasa.NullValue())
		case "delete_rule":
			i := find()
			if i < 0 {
				return failure(-14, "entry not exist")
			}
			p.rules[module] = append(rules[:i:i], rules[i+1:]...)
			return success(kasa.NullValue())
		case "delete_all_rules":
			delete(p.rules, module)
			return success(kasa.NullValue())
		case "erase_runtime_stat", "get_next_action":
			if module != "schedule" {
				break
			}
			if action == "get_next_action" {
				return success(parse(`{"type":-1}`))
			}
			return success(kasa.NullValue())
		}

		return failure(-2, "member not support")
	}
}

func (p *Plug) dimmer(action string, params kasa.Value) kasa.Value {
	if action != "set_brightness" {
		return failure(-2, "member not support")
	}

	return p.set("brightness", params.Get("brightness"))
}

func parse(s string) kasa.Value {
	v, err := kasa.ParseValue([]byte(s))
	if err != nil {
		panic(err)
	}

	return v
}

// success adds err_code 0 to the members of result, if any.
func success(result kasa.Value) kasa.Value {
	obj := kasa.NewObject().Set("err_code", kasa.IntValue(0))
	if members, ok := result.Object(); ok {
		for _, key := range members.Keys() {
			v, _ := members.Get(key)
			obj.Set(key, v)
		}
	}

	return kasa.ObjectValue(obj)
}

func failure(code int64, msg string) kasa.Value {
	return kasa.ObjectValue(kasa.NewObject().
		Set("err_code", kasa.IntValue(code)).
		Set("err_msg", kasa.StringValue(msg)))
}
