package statusnotifier

import "github.com/godbus/dbus/v5"

const (
	propertiesInterface     = "org.freedesktop.DBus.Properties"
	propertiesChangedSignal = propertiesInterface + ".PropertiesChanged"
)

// Bus is the subset of [dbus.Conn] used by the service objects. Consuming an
// interface instead of the concrete connection allows tests to substitute a
// recording bus.
type Bus interface {
	Export(v any, path dbus.ObjectPath, iface string) error
	Emit(path dbus.ObjectPath, name string, values ...any) error
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) (dbus.ReleaseNameReply, error)
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

var _ Bus = (*dbus.Conn)(nil)
