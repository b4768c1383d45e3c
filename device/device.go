package device

import (
	"context"
	"fmt"

	"hs100/kasa"
)

type Basic interface {
	GetID() InternalName
}

type OnOff interface {
	Basic

	SetOnOff(ctx context.Context, on bool) error
	GetOnOff(ctx context.Context) (bool, error)
}

// Metering devices report their power draw.
type Metering interface {
	Basic

	GetEmeter(ctx context.Context) (kasa.EmeterStatus, error)
}

// Queryable devices expose their raw system information.
type Queryable interface {
	Basic

	GetSysInfo(ctx context.Context) (kasa.Value, error)
}

func GetDevices[K any](devices map[InternalName]Basic) map[InternalName]K {
	devs := make(map[InternalName]K)

	for name, device := range devices {
		if dev, ok := device.(K); ok {
			devs[name] = dev
		}
	}

	return devs
}

var ErrNotFound = fmt.Errorf("device not found")

func GetDevice[K any](devices map[InternalName]Basic, name InternalName) (K, error) {
	var noop K

	d, ok := devices[name]
	if !ok {
		return noop, fmt.Errorf("device '%s': %w", name, ErrNotFound)
	}

	dev, ok := d.(K)
	if !ok {
		return noop, fmt.Errorf("device '%s' is not the expected type", name)
	}

	return dev, nil
}
