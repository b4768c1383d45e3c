package kasa_test

import (
	"context"
	"errors"
	"testing"

	"hs100/kasa"
	"hs100/kasa/kasatest"
)

func TestScheduleRules(t *testing.T) {
	p, fake := servePlug(t, kasatest.HS100)
	ctx := context.Background()
	schedule := p.Schedule()

	rules, err := schedule.List(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("Expected no rules, got %d", len(rules))
	}

	morning := kasa.NewObject().
		Set("enable", kasa.IntValue(1)).
		Set("sact", kasa.IntValue(1)).
		Set("smin", kasa.IntValue(420))
	if err := schedule.Set(ctx, "morning", morning); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := morning.Get("name"); ok {
		t.Error("Expected the caller's rule to be left alone")
	}

	rule, err := schedule.Get(ctx, "morning")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	id, _ := rule.Get("id").Str()
	if smin, _ := rule.Get("smin").Int(); smin != 420 || id == "" {
		t.Errorf("Expected smin 420 with an id, got %s", rule)
	}

	// Same name edits in place
	morning.Set("smin", kasa.IntValue(480))
	if err := schedule.Set(ctx, "morning", morning); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	stored := fake.Rules("schedule")
	if len(stored) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(stored))
	}
	if got, _ := stored[0].Get("id").Str(); got != id {
		t.Errorf("Expected id %s to be kept, got %s", id, got)
	}
	if smin, _ := stored[0].Get("smin").Int(); smin != 480 {
		t.Errorf("Expected smin 480, got %d", smin)
	}

	if _, err := p.NextAction(ctx); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if err := schedule.Delete(ctx, "morning"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := len(fake.Rules("schedule")); n != 0 {
		t.Errorf("Expected no rules, got %d", n)
	}

	if err := schedule.Delete(ctx, "morning"); !errors.Is(err, kasa.ErrNoRule) {
		t.Errorf("Expected ErrNoRule, got %v", err)
	}
	if _, err := schedule.Get(ctx, "evening"); !errors.Is(err, kasa.ErrNoRule) {
		t.Errorf("Expected ErrNoRule, got %v", err)
	}
}

func TestRuleModulesAreSeparate(t *testing.T) {
	p, fake := servePlug(t, kasatest.HS100)
	ctx := context.Background()

	timer := kasa.NewObject().
		Set("enable", kasa.IntValue(1)).
		Set("delay", kasa.IntValue(1800)).
		Set("act", kasa.IntValue(0))
	if err := p.Countdown().Set(ctx, "off in half an hour", timer); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	away := kasa.NewObject().Set("enable", kasa.IntValue(1)).Set("frequency", kasa.IntValue(5))
	if err := p.AntiTheft().Set(ctx, "away", away); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if n := len(fake.Rules("count_down")); n != 1 {
		t.Errorf("Expected 1 countdown rule, got %d", n)
	}
	if n := len(fake.Rules("anti_theft")); n != 1 {
		t.Errorf("Expected 1 anti theft rule, got %d", n)
	}
	if n := len(fake.Rules("schedule")); n != 0 {
		t.Errorf("Expected no schedule rules, got %d", n)
	}

	if err := p.Countdown().DeleteAll(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := len(fake.Rules("count_down")); n != 0 {
		t.Errorf("Expected no countdown rules, got %d", n)
	}
	if n := len(fake.Rules("anti_theft")); n != 1 {
		t.Errorf("Expected the anti theft rule to stay, got %d", n)
	}
}

func TestScheduleDeleteAll(t *testing.T) {
	p, fake := servePlug(t, kasatest.HS100)
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		if err := p.Schedule().Set(ctx, name, nil); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if err := p.Schedule().DeleteAll(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := len(fake.Rules("schedule")); n != 0 {
		t.Errorf("Expected no rules, got %d", n)
	}
}

func TestRulesWithoutList(t *testing.T) {
	s := kasatest.NewServer(func(req kasa.Value) kasa.Value {
		return parse(t, `{"schedule":{"get_rules":{"err_code":0,"enable":1}}}`)
	})
	defer s.Close()

	p := kasa.NewPlug(s.Addr, kasa.WithClient(testClient()))
	if _, err := p.Schedule().List(context.Background()); !errors.Is(err, kasa.ErrMalformedResponse) {
		t.Errorf("Expected a malformed response, got %v", err)
	}
}
