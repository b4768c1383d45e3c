package home

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"hs100/device"
	"hs100/kasa"
)

// Status is a snapshot of a single device, taken by Refresh.
type Status struct {
	Name    device.InternalName `json:"name"`
	State   kasa.State          `json:"state,omitempty"`
	Power   *float64            `json:"power,omitempty"`
	Error   string              `json:"error,omitempty"`
	Updated int64               `json:"updated"`
}

type Home struct {
	Devices map[device.InternalName]device.Basic

	mu        sync.Mutex
	listeners []func(Status)
	last      map[device.InternalName]Status
}

func New() *Home {
	return &Home{
		Devices: make(map[device.InternalName]device.Basic),
		last:    make(map[device.InternalName]Status),
	}
}

func (h *Home) AddDevice(d device.Basic) {
	h.Devices[d.GetID()] = d

	if room := d.GetID().Room(); room != "" {
		log.Printf("Added %s in %s (%s)\n", d.GetID().Name(), room, d.GetID())
	} else {
		log.Printf("Added %s (%s)\n", d.GetID().Name(), d.GetID())
	}
}

// Names returns the names of all devices in a stable order.
func (h *Home) Names() []device.InternalName {
	names := make([]device.InternalName, 0, len(h.Devices))
	for name := range h.Devices {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names
}

// OnStatus registers f to be called with every status Refresh produces.
func (h *Home) OnStatus(f func(Status)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.listeners = append(h.listeners, f)
}

// Status returns the last status seen for name.
func (h *Home) Status(name device.InternalName) (Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.last[name]
	return s, ok
}

// Refresh polls every OnOff device once. A device that can not be reached
// still produces a status, with Error set.
func (h *Home) Refresh(ctx context.Context) []Status {
	devices := device.GetDevices[device.OnOff](h.Devices)

	var wg sync.WaitGroup
	results := make(chan Status, len(devices))
	for _, dev := range devices {
		wg.Add(1)
		go func(dev device.OnOff) {
			defer wg.Done()
			results <- poll(ctx, dev)
		}(dev)
	}
	wg.Wait()
	close(results)

	var statuses []Status
	for status := range results {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	h.mu.Lock()
	listeners := append([]func(Status){}, h.listeners...)
	for _, status := range statuses {
		h.last[status.Name] = status
	}
	h.mu.Unlock()

	for _, status := range statuses {
		for _, f := range listeners {
			f(status)
		}
	}

	return statuses
}

// Run refreshes right away and then every interval until ctx is done.
func (h *Home) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.Refresh(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func poll(ctx context.Context, dev device.OnOff) Status {
	status := Status{
		Name:    dev.GetID(),
		Updated: time.Now().UnixMilli(),
	}

	on, err := dev.GetOnOff(ctx)
	if err != nil {
		log.Printf("Failed to poll %s: %s\n", dev.GetID(), err)
		status.Error = err.Error()
		return status
	}

	status.State = kasa.StateOff
	if on {
		status.State = kasa.StateOn
	}

	metering, ok := dev.(device.Metering)
	if !ok {
		return status
	}

	emeter, err := metering.GetEmeter(ctx)
	if errors.Is(err, kasa.ErrNoEmeter) {
		return status
	} else if err != nil {
		log.Printf("Failed to read emeter of %s: %s\n", dev.GetID(), err)
		return status
	}

	if power, ok := emeter.Power(); ok {
		status.Power = &power
	}

	return status
}
