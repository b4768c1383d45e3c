package kasa

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoRule is returned when no rule carries the requested name.
var ErrNoRule = errors.New("no rule with that name")

// Rules is the rule list of one of the schedule, count_down or anti_theft
// modules. Rules are addressed by name, the device assigns the ids.
type Rules struct {
	plug   *Plug
	module string
}

func (p *Plug) Schedule() *Rules {
	return &Rules{plug: p, module: "schedule"}
}

func (p *Plug) Countdown() *Rules {
	return &Rules{plug: p, module: "count_down"}
}

func (p *Plug) AntiTheft() *Rules {
	return &Rules{plug: p, module: "anti_theft"}
}

func (r *Rules) List(ctx context.Context) ([]Value, error) {
	v, err := r.plug.Query(ctx, r.module, "get_rules", NullValue())
	if err != nil {
		return nil, err
	}

	list, ok := v.Get("rule_list").List()
	if !ok {
		return nil, r.plug.malformed(r.module+"/get_rules", fmt.Errorf("no rule_list in %s", v))
	}

	return list, nil
}

func (r *Rules) Get(ctx context.Context, name string) (Value, error) {
	rules, err := r.List(ctx)
	if err != nil {
		return Value{}, err
	}

	for _, rule := range rules {
		if n, _ := rule.Get("name").Str(); n == name {
			return rule, nil
		}
	}

	return Value{}, fmt.Errorf("%s rule '%s': %w", r.module, name, ErrNoRule)
}

// Set adds rule under name, or replaces the rule that already has that name.
// rule itself is not modified.
func (r *Rules) Set(ctx context.Context, name string, rule *Object) error {
	if rule == nil {
		rule = NewObject()
	} else {
		rule = rule.Clone()
	}
	rule.Set("name", StringValue(name))

	action := "add_rule"
	existing, err := r.Get(ctx, name)
	switch {
	case err == nil:
		action = "edit_rule"
		rule.Set("id", existing.Get("id"))
	case !errors.Is(err, ErrNoRule):
		return err
	}

	_, err = r.plug.Query(ctx, r.module, action, ObjectValue(rule))
	return err
}

func (r *Rules) Delete(ctx context.Context, name string) error {
	rule, err := r.Get(ctx, name)
	if err != nil {
		return err
	}

	_, err = r.plug.Query(ctx, r.module, "delete_rule", ObjectValue(NewObject().Set("id", rule.Get("id"))))
	return err
}

// DeleteAll removes every rule. For the schedule the runtime statistics are
// erased as well.
func (r *Rules) DeleteAll(ctx context.Context) error {
	if _, err := r.plug.Query(ctx, r.module, "delete_all_rules", NullValue()); err != nil {
		return err
	}

	if r.module != "schedule" {
		return nil
	}

	_, err := r.plug.Query(ctx, r.module, "erase_runtime_stat", NullValue())
	return err
}

// NextAction returns the next scheduled action as reported by the device.
func (p *Plug) NextAction(ctx context.Context) (Value, error) {
	return p.Query(ctx, "schedule", "get_next_action", NullValue())
}
