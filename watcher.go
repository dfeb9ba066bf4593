package statusnotifier

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	StatusNotifierWatcherInterface = "org.kde.StatusNotifierWatcher"
	StatusNotifierWatcherPath      = "/StatusNotifierWatcher"
)

// protocolVersion is the StatusNotifierWatcher protocol version served by
// [Watcher].
const protocolVersion int32 = 1

// Watcher implements [StatusNotifierWatcher]. Desktop shells normally
// provide one; this implementation exists for deployments without a shell
// tray, so [Item] still has a registration target. One watcher must be
// present on a bus at a time.
//
// [StatusNotifierWatcher]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierWatcher/
type Watcher struct {
	conn    Bus
	logger  *zap.Logger
	mu      sync.Mutex
	closed  bool
	signals chan *dbus.Signal
	hosts   []string
	items   []string
}

// NewWatcher returns a new [Watcher]. Call [Watcher.Listen] to take the
// watcher name on the bus. A nil logger disables logging.
func NewWatcher(conn Bus, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		conn:    conn,
		logger:  logger,
		signals: make(chan *dbus.Signal, 64),
		hosts:   []string{},
		items:   []string{},
	}
}

// Listen requests the watcher name on the bus, exports the watcher object,
// and subscribes to name owner changes so vanished items and hosts are
// unregistered.
//
// If Listen is called after [Watcher.Close], an error is returned.
func (w *Watcher) Listen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("listen: watcher is closed")
	}

	reply, err := w.conn.RequestName(StatusNotifierWatcherInterface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("listen: failed to request name %s: %w", StatusNotifierWatcherInterface, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("listen: name %s already taken", StatusNotifierWatcherInterface)
	}

	if err := w.conn.Export(w, StatusNotifierWatcherPath, StatusNotifierWatcherInterface); err != nil {
		return fmt.Errorf("listen: failed to export %s: %w", StatusNotifierWatcherInterface, err)
	}

	if err := w.conn.Export(w, StatusNotifierWatcherPath, propertiesInterface); err != nil {
		return fmt.Errorf("listen: failed to export %s: %w", propertiesInterface, err)
	}

	w.subscribe()

	return nil
}

// Close releases the watcher name and unsubscribes from signals. The
// watcher cannot be reused after Close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.conn.ReleaseName(StatusNotifierWatcherInterface); err != nil {
		return err
	}

	for _, host := range w.hosts {
		w.removeOwnerWatch(host)
	}

	for _, item := range w.items {
		// Items are stored as <uniqueName><path>; owner watches match
		// against the unique name alone.
		uniqueName, _, ok := strings.Cut(item, "/")
		if !ok {
			continue
		}

		w.removeOwnerWatch(uniqueName)
	}

	w.conn.RemoveSignal(w.signals)
	close(w.signals)

	w.closed = true

	return nil
}

// RegisteredItems returns the identifiers of the currently registered items.
func (w *Watcher) RegisteredItems() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return slices.Clone(w.items)
}

// RegisterStatusNotifierItem registers an item into the watcher. The name is
// either a bus name, in which case the item object is expected at
// /StatusNotifierItem, or an object path on the sender's connection.
func (w *Watcher) RegisterStatusNotifierItem(name string, sender dbus.Sender) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	identifier := name + StatusNotifierItemPath
	if strings.HasPrefix(name, "/") {
		identifier = string(sender) + name
	}

	if slices.Contains(w.items, identifier) {
		return nil
	}

	w.items = append(w.items, identifier)

	w.logger.Debug("item registered", zap.String("item", identifier))

	w.addOwnerWatch(string(sender))
	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierItemRegistered", identifier)
	w.emitProperties()

	return nil
}

// RegisterStatusNotifierHost registers a visualization host into the
// watcher.
func (w *Watcher) RegisterStatusNotifierHost(name string) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if slices.Contains(w.hosts, name) {
		return nil
	}

	w.hosts = append(w.hosts, name)

	w.logger.Debug("host registered", zap.String("host", name))

	w.addOwnerWatch(name)
	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierHostRegistered", name)
	w.emitProperties()

	return nil
}

// Get implements org.freedesktop.DBus.Properties.Get. Unknown interfaces
// and properties yield an empty result instead of an error.
func (w *Watcher) Get(iface, property string) (dbus.Variant, *dbus.Error) {
	value, ok := w.properties(iface)[property]
	if !ok {
		return dbus.MakeVariant(""), nil
	}

	return value, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll. Unknown
// interfaces yield an empty map instead of an error.
func (w *Watcher) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	return w.properties(iface), nil
}

func (w *Watcher) properties(iface string) map[string]dbus.Variant {
	if iface != StatusNotifierWatcherInterface {
		return map[string]dbus.Variant{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.propertiesLocked()
}

func (w *Watcher) propertiesLocked() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"RegisteredStatusNotifierItems":  dbus.MakeVariant(slices.Clone(w.items)),
		"IsStatusNotifierHostRegistered": dbus.MakeVariant(len(w.hosts) > 0),
		"ProtocolVersion":                dbus.MakeVariant(protocolVersion),
	}
}

// emitProperties broadcasts the full watcher property bag. Callers must hold
// the mutex.
func (w *Watcher) emitProperties() {
	w.conn.Emit(
		StatusNotifierWatcherPath,
		propertiesChangedSignal,
		StatusNotifierWatcherInterface,
		w.propertiesLocked(),
		[]string{},
	)
}

// addOwnerWatch watches for owner changes of the given name. Whenever the
// name disappears, the bus sends NameOwnerChanged with an empty NewOwner
// argument, and the registration is dropped.
func (w *Watcher) addOwnerWatch(name string) {
	w.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	)
}

func (w *Watcher) removeOwnerWatch(name string) {
	w.conn.RemoveMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	)
}

func (w *Watcher) subscribe() {
	w.conn.Signal(w.signals)

	go func() {
		for signal := range w.signals {
			if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" {
				continue
			}

			if len(signal.Body) < 3 {
				continue
			}

			name, ok := signal.Body[0].(string)
			if !ok {
				continue
			}

			newOwner, ok := signal.Body[2].(string)
			if !ok {
				continue
			}

			if newOwner == "" {
				w.tryUnregisterHost(name)
				w.tryUnregisterItem(name)
			}
		}
	}()
}

func (w *Watcher) tryUnregisterHost(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := slices.Index(w.hosts, name)
	if idx < 0 {
		return
	}

	w.hosts = slices.Delete(w.hosts, idx, idx+1)

	w.logger.Debug("host unregistered", zap.String("host", name))

	w.removeOwnerWatch(name)
	w.emitProperties()
}

func (w *Watcher) tryUnregisterItem(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := slices.IndexFunc(w.items, func(item string) bool {
		return strings.HasPrefix(item, name)
	})
	if idx < 0 {
		return
	}

	identifier := w.items[idx]
	w.items = slices.Delete(w.items, idx, idx+1)

	w.logger.Debug("item unregistered", zap.String("item", identifier))

	w.removeOwnerWatch(name)
	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierItemUnregistered", identifier)
	w.emitProperties()
}
