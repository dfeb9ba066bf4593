package statusnotifier

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
)

// fakeBus records exports, emitted signals, and outbound calls so tests can
// assert on the traffic the services would put on a real session bus.
type fakeBus struct {
	mu        sync.Mutex
	exports   map[dbus.ObjectPath][]string
	names     []string
	signals   []emittedSignal
	calls     []recordedCall
	callErr   error
	nameReply dbus.RequestNameReply
}

type emittedSignal struct {
	Path   dbus.ObjectPath
	Name   string
	Values []any
}

type recordedCall struct {
	Destination string
	Path        dbus.ObjectPath
	Method      string
	Args        []any
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		exports:   make(map[dbus.ObjectPath][]string),
		nameReply: dbus.RequestNameReplyPrimaryOwner,
	}
}

func (b *fakeBus) Export(v any, path dbus.ObjectPath, iface string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.exports[path] = append(b.exports[path], iface)

	return nil
}

func (b *fakeBus) Emit(path dbus.ObjectPath, name string, values ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.signals = append(b.signals, emittedSignal{Path: path, Name: name, Values: values})

	return nil
}

func (b *fakeBus) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.names = append(b.names, name)

	return b.nameReply, nil
}

func (b *fakeBus) ReleaseName(name string) (dbus.ReleaseNameReply, error) {
	return dbus.ReleaseNameReplyReleased, nil
}

func (b *fakeBus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return &fakeObject{bus: b, dest: dest, path: path}
}

func (b *fakeBus) AddMatchSignal(options ...dbus.MatchOption) error { return nil }

func (b *fakeBus) RemoveMatchSignal(options ...dbus.MatchOption) error { return nil }

func (b *fakeBus) Signal(ch chan<- *dbus.Signal) {}

func (b *fakeBus) RemoveSignal(ch chan<- *dbus.Signal) {}

// signalsNamed returns the emitted signals with the given fully qualified
// name, in emission order.
func (b *fakeBus) signalsNamed(name string) []emittedSignal {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []emittedSignal

	for _, signal := range b.signals {
		if signal.Name == name {
			matched = append(matched, signal)
		}
	}

	return matched
}

type fakeObject struct {
	bus  *fakeBus
	dest string
	path dbus.ObjectPath
}

func (o *fakeObject) Call(method string, flags dbus.Flags, args ...any) *dbus.Call {
	o.bus.mu.Lock()
	defer o.bus.mu.Unlock()

	o.bus.calls = append(o.bus.calls, recordedCall{
		Destination: o.dest,
		Path:        o.path,
		Method:      method,
		Args:        args,
	})

	return &dbus.Call{Err: o.bus.callErr}
}

func (o *fakeObject) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call {
	return o.Call(method, flags, args...)
}

func (o *fakeObject) Go(method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	return o.Call(method, flags, args...)
}

func (o *fakeObject) GoWithContext(ctx context.Context, method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	return o.Call(method, flags, args...)
}

func (o *fakeObject) AddMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (o *fakeObject) RemoveMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (o *fakeObject) GetProperty(p string) (dbus.Variant, error) {
	return dbus.Variant{}, nil
}

func (o *fakeObject) StoreProperty(p string, value any) error { return nil }

func (o *fakeObject) SetProperty(p string, v any) error { return nil }

func (o *fakeObject) Destination() string { return o.dest }

func (o *fakeObject) Path() dbus.ObjectPath { return o.path }
