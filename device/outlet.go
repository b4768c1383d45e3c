package device

import (
	"context"

	"hs100/kasa"
)

// Outlet is a kasa smart plug known under an internal name.
type Outlet struct {
	name InternalName
	plug *kasa.Plug
}

func NewOutlet(name InternalName, plug *kasa.Plug) *Outlet {
	return &Outlet{name, plug}
}

func (o *Outlet) Plug() *kasa.Plug {
	return o.plug
}

// device.Basic
var _ Basic = (*Outlet)(nil)

func (o *Outlet) GetID() InternalName {
	return o.name
}

// device.OnOff
var _ OnOff = (*Outlet)(nil)

func (o *Outlet) SetOnOff(ctx context.Context, on bool) error {
	return o.plug.SetState(ctx, on)
}

func (o *Outlet) GetOnOff(ctx context.Context) (bool, error) {
	return o.plug.IsOn(ctx)
}

// device.Metering
var _ Metering = (*Outlet)(nil)

func (o *Outlet) GetEmeter(ctx context.Context) (kasa.EmeterStatus, error) {
	return o.plug.Emeter(ctx)
}

// device.Queryable
var _ Queryable = (*Outlet)(nil)

func (o *Outlet) GetSysInfo(ctx context.Context) (kasa.Value, error) {
	return o.plug.SystemInfo(ctx)
}
