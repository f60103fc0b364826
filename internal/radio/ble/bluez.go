package ble

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	bluezService            = "org.bluez"
	adapterIface            = "org.bluez.Adapter1"
	advertisingManagerIface = "org.bluez.LEAdvertisingManager1"
	advertisementIface      = "org.bluez.LEAdvertisement1"
	propertiesChanged       = "org.freedesktop.DBus.Properties.PropertiesChanged"

	errDoesNotExist = "org.bluez.Error.DoesNotExist"
)

var advertisementCount atomic.Uint64

// advertisement is the content of one LEAdvertisement1 object.
type advertisement struct {
	ServiceUUIDs []string
	ServiceData  map[string][]byte
	Interval     time.Duration
}

func (a advertisement) properties() prop.Map {
	serviceData := make(map[string]interface{}, len(a.ServiceData))
	for id, data := range a.ServiceData {
		serviceData[id] = data
	}

	props := map[string]*prop.Prop{
		"Type":         {Value: "broadcast"},
		"ServiceUUIDs": {Value: a.ServiceUUIDs},
		"ServiceData":  {Value: serviceData},
		"Timeout":      {Value: uint16(0)},
	}
	if ms := uint32(a.Interval.Milliseconds()); ms > 0 {
		// ignored by BlueZ unless started with --experimental
		props["MinInterval"] = &prop.Prop{Value: ms}
		props["MaxInterval"] = &prop.Prop{Value: ms}
	}

	return prop.Map{advertisementIface: props}
}

// adapter is the part of a host controller the radio drives.
type adapter interface {
	Powered() (bool, error)

	// PoweredChanges delivers every change of the power state. It is closed
	// by Close.
	PoweredChanges() <-chan bool

	// Advertise publishes adv and asks the controller to broadcast it.
	Advertise(adv advertisement) error

	// StopAdvertising withdraws the published advertisement.
	StopAdvertising() error

	Close() error
}

// releaser receives LEAdvertisement1.Release when BlueZ drops the advertisement.
type releaser struct {
	released func()
}

func (r releaser) Release() *dbus.Error {
	r.released()
	return nil
}

// bluezAdapter talks to one BlueZ adapter over the system bus.
type bluezAdapter struct {
	conn    *dbus.Conn
	adapter dbus.BusObject
	path    dbus.ObjectPath

	mu         sync.Mutex
	exported   bool
	registered bool

	signals chan *dbus.Signal
	changes chan bool
}

func dialBlueZ(id string) (adapter, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}

	obj := conn.Object(bluezService, dbus.ObjectPath("/org/bluez/"+id))
	if _, err := obj.GetProperty(adapterIface + ".Address"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("adapter %s: %w", id, err)
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(obj.Path()),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("watching adapter %s: %w", id, err)
	}

	a := &bluezAdapter{
		conn:    conn,
		adapter: obj,
		path:    dbus.ObjectPath(fmt.Sprintf("/org/onlytheonionnews/remoteid/advertisement%d", advertisementCount.Add(1))),
		signals: make(chan *dbus.Signal, 16),
		changes: make(chan bool, 1),
	}
	conn.Signal(a.signals)
	go a.watch()

	return a, nil
}

func (a *bluezAdapter) Powered() (bool, error) {
	v, err := a.adapter.GetProperty(adapterIface + ".Powered")
	if err != nil {
		return false, fmt.Errorf("reading power state: %w", err)
	}
	powered, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("unexpected power state %s", v)
	}
	return powered, nil
}

func (a *bluezAdapter) PoweredChanges() <-chan bool {
	return a.changes
}

// watch turns PropertiesChanged signals of the adapter into power changes
// until the connection is closed.
func (a *bluezAdapter) watch() {
	defer close(a.changes)

	for sig := range a.signals {
		if powered, ok := poweredChange(sig, a.adapter.Path()); ok {
			a.changes <- powered
		}
	}
}

// poweredChange extracts the new Powered value from an adapter
// PropertiesChanged signal.
func poweredChange(sig *dbus.Signal, path dbus.ObjectPath) (bool, bool) {
	if sig == nil || sig.Path != path || sig.Name != propertiesChanged || len(sig.Body) < 2 {
		return false, false
	}
	if iface, _ := sig.Body[0].(string); iface != adapterIface {
		return false, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false, false
	}
	v, ok := changed["Powered"]
	if !ok {
		return false, false
	}
	powered, ok := v.Value().(bool)
	return powered, ok
}

// Advertise exports the advertisement object on first use and refreshes its
// properties afterwards. BlueZ reads them again on every registration.
func (a *bluezAdapter) Advertise(adv advertisement) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.exported {
		err := a.conn.Export(releaser{released: a.released}, a.path, advertisementIface)
		if err != nil {
			return fmt.Errorf("exporting advertisement: %w", err)
		}
		a.exported = true
	}
	if _, err := prop.Export(a.conn, a.path, adv.properties()); err != nil {
		return fmt.Errorf("exporting advertisement properties: %w", err)
	}

	if a.registered {
		if err := a.unregisterLocked(); err != nil {
			return err
		}
	}

	call := a.adapter.Call(advertisingManagerIface+".RegisterAdvertisement", 0, a.path, map[string]interface{}{})
	if err := call.Err; err != nil {
		return fmt.Errorf("registering advertisement: %w", err)
	}
	a.registered = true

	return nil
}

func (a *bluezAdapter) StopAdvertising() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.registered {
		return nil
	}
	return a.unregisterLocked()
}

func (a *bluezAdapter) unregisterLocked() error {
	a.registered = false

	call := a.adapter.Call(advertisingManagerIface+".UnregisterAdvertisement", 0, a.path)
	if err := call.Err; err != nil && !isBlueZError(err, errDoesNotExist) {
		return fmt.Errorf("unregistering advertisement: %w", err)
	}
	return nil
}

func (a *bluezAdapter) released() {
	a.mu.Lock()
	a.registered = false
	a.mu.Unlock()
}

func (a *bluezAdapter) Close() error {
	_ = a.StopAdvertising()
	return a.conn.Close()
}

func isBlueZError(err error, name string) bool {
	var dbusErr dbus.Error
	return errors.As(err, &dbusErr) && dbusErr.Name == name
}
