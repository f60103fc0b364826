package ble

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/onlyTheOnionNews/drone-phone/internal/broadcast"
)

var serviceID = uuid.MustParse("0000fffa-0000-1000-8000-00805f9b34fb")

type fakeAdapter struct {
	mu          sync.Mutex
	powered     bool
	failAdvert  bool
	advertising bool
	adverts     []advertisement
	stops       int
	closed      bool

	changes chan bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{powered: true, changes: make(chan bool)}
}

func (f *fakeAdapter) Powered() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.powered, nil
}

func (f *fakeAdapter) PoweredChanges() <-chan bool {
	return f.changes
}

func (f *fakeAdapter) Advertise(adv advertisement) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAdvert {
		return errors.New("org.bluez.Error.Failed")
	}
	f.adverts = append(f.adverts, adv)
	f.advertising = true
	return nil
}

func (f *fakeAdapter) StopAdvertising() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.advertising = false
	return nil
}

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	close(f.changes)
	return nil
}

func (f *fakeAdapter) setPowered(powered bool) {
	f.mu.Lock()
	f.powered = powered
	f.mu.Unlock()
	f.changes <- powered
}

func newTestRadio(t *testing.T, a *fakeAdapter) *Radio {
	t.Helper()

	r := New(WithInterval(50 * time.Millisecond))
	r.dial = func(id string) (adapter, error) {
		if id != DefaultAdapter {
			t.Errorf("Expected adapter %s, got %s", DefaultAdapter, id)
		}
		return a, nil
	}
	t.Cleanup(func() { _ = r.Close() })

	return r
}

func nextEvent(t *testing.T, r *Radio) broadcast.RadioStatus {
	t.Helper()

	select {
	case s := <-r.PowerEvents():
		return s
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for a power event")
		return 0
	}
}

func TestRadio_ConsecutiveAdvertisements(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRadio(t, a)

	if s := r.Status(); s != broadcast.RadioReady {
		t.Fatalf("Expected ready, got %s", s)
	}

	frames := [][]byte{{0x0D, 0x00, 0x01}, {0x0D, 0x01, 0x02}, {0x0D, 0x02, 0x03}}
	for i, frame := range frames {
		if err := r.StopAdvertising(); err != nil {
			t.Fatalf("StopAdvertising %d failed: %v", i, err)
		}
		if err := r.Advertise(serviceID, frame); err != nil {
			t.Fatalf("Advertise %d failed: %v", i, err)
		}
	}
	// without a stop in between
	if err := r.Advertise(serviceID, frames[0]); err != nil {
		t.Fatalf("Repeated Advertise failed: %v", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.adverts) != 4 {
		t.Fatalf("Expected 4 advertisements, got %d", len(a.adverts))
	}
	// the first StopAdvertising had nothing to stop
	if a.stops != 2 {
		t.Errorf("Expected 2 stops, got %d", a.stops)
	}
	id := serviceID.String()
	for i, frame := range frames {
		want := advertisement{
			ServiceUUIDs: []string{id},
			ServiceData:  map[string][]byte{id: frame},
			Interval:     50 * time.Millisecond,
		}
		if diff := cmp.Diff(want, a.adverts[i]); diff != "" {
			t.Errorf("Advertisement %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestRadio_PoweredOffAtStart(t *testing.T) {
	a := newFakeAdapter()
	a.powered = false
	r := newTestRadio(t, a)

	if s := r.Status(); s != broadcast.RadioPoweredOff {
		t.Errorf("Expected powered-off, got %s", s)
	}
}

func TestRadio_PowerChanges(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRadio(t, a)

	if s := r.Status(); s != broadcast.RadioReady {
		t.Fatalf("Expected ready, got %s", s)
	}
	if err := r.Advertise(serviceID, []byte{0x0D}); err != nil {
		t.Fatalf("Advertise failed: %v", err)
	}

	a.setPowered(false)
	if s := nextEvent(t, r); s != broadcast.RadioPoweredOff {
		t.Errorf("Expected powered-off event, got %s", s)
	}
	if s := r.Status(); s != broadcast.RadioPoweredOff {
		t.Errorf("Expected powered-off status, got %s", s)
	}

	// the advertisement is already gone with the power
	if err := r.StopAdvertising(); err != nil {
		t.Fatalf("StopAdvertising failed: %v", err)
	}
	a.mu.Lock()
	stops := a.stops
	a.mu.Unlock()
	if stops != 0 {
		t.Errorf("Expected no stop after power off, got %d", stops)
	}

	a.setPowered(true)
	if s := nextEvent(t, r); s != broadcast.RadioReady {
		t.Errorf("Expected ready event, got %s", s)
	}
}

func TestRadio_AdvertiseFailureReadsPower(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRadio(t, a)

	if s := r.Status(); s != broadcast.RadioReady {
		t.Fatalf("Expected ready, got %s", s)
	}

	// switched off without a change notification
	a.mu.Lock()
	a.powered = false
	a.failAdvert = true
	a.mu.Unlock()

	if err := r.Advertise(serviceID, []byte{0x0D}); err == nil {
		t.Fatal("Expected error")
	}
	if s := nextEvent(t, r); s != broadcast.RadioPoweredOff {
		t.Errorf("Expected powered-off event, got %s", s)
	}
}

func TestRadio_NoAdapter(t *testing.T) {
	r := New()
	r.dial = func(string) (adapter, error) {
		return nil, errors.New("org.freedesktop.DBus.Error.ServiceUnknown")
	}

	if s := r.Status(); s != broadcast.RadioUnsupported {
		t.Errorf("Expected unsupported, got %s", s)
	}
	if err := r.Advertise(serviceID, []byte{0x0D}); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("Expected ErrNotEnabled, got %v", err)
	}
	if err := r.StopAdvertising(); err != nil {
		t.Errorf("StopAdvertising failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestRadio_Close(t *testing.T) {
	a := newFakeAdapter()
	r := newTestRadio(t, a)

	r.Status()
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		t.Error("Expected adapter closed")
	}
}

func TestPoweredChange(t *testing.T) {
	path := dbus.ObjectPath("/org/bluez/hci0")
	changed := func(iface string, props map[string]dbus.Variant) *dbus.Signal {
		return &dbus.Signal{Path: path, Name: propertiesChanged, Body: []interface{}{iface, props, []string{}}}
	}

	tests := []struct {
		name        string
		sig         *dbus.Signal
		wantPowered bool
		wantOK      bool
	}{
		{"powered off", changed(adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(false)}), false, true},
		{"powered on", changed(adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(true), "Discovering": dbus.MakeVariant(false)}), true, true},
		{"other property", changed(adapterIface, map[string]dbus.Variant{"Discovering": dbus.MakeVariant(true)}), false, false},
		{"other interface", changed("org.bluez.Device1", map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}), false, false},
		{"other adapter", &dbus.Signal{Path: "/org/bluez/hci1", Name: propertiesChanged, Body: []interface{}{adapterIface, map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)}}}, false, false},
		{"short body", &dbus.Signal{Path: path, Name: propertiesChanged, Body: []interface{}{adapterIface}}, false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			powered, ok := poweredChange(tt.sig, path)
			if powered != tt.wantPowered || ok != tt.wantOK {
				t.Errorf("Expected (%v, %v), got (%v, %v)", tt.wantPowered, tt.wantOK, powered, ok)
			}
		})
	}
}

func TestAdvertisement_Properties(t *testing.T) {
	id := serviceID.String()
	data := []byte{0x0D, 0x00, 0x01}

	props := advertisement{
		ServiceUUIDs: []string{id},
		ServiceData:  map[string][]byte{id: data},
		Interval:     100 * time.Millisecond,
	}.properties()[advertisementIface]

	if got := props["Type"].Value; got != "broadcast" {
		t.Errorf("Expected broadcast type, got %v", got)
	}
	if got := props["Timeout"].Value; got != uint16(0) {
		t.Errorf("Expected no timeout, got %v", got)
	}
	if got := props["MinInterval"].Value; got != uint32(100) {
		t.Errorf("Expected 100 ms interval, got %v", got)
	}
	serviceData, ok := props["ServiceData"].Value.(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected service data type %T", props["ServiceData"].Value)
	}
	if got, _ := serviceData[id].([]byte); !bytes.Equal(got, data) {
		t.Errorf("Expected %x, got %x", data, got)
	}

	noInterval := advertisement{ServiceUUIDs: []string{id}}.properties()[advertisementIface]
	if _, ok := noInterval["MinInterval"]; ok {
		t.Error("Expected no interval without one configured")
	}
}
