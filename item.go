package statusnotifier

import (
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	StatusNotifierItemInterface = "org.kde.StatusNotifierItem"
	StatusNotifierItemPath      = "/StatusNotifierItem"
)

type ItemCategory string

// StatusNotifierItem categories.
const (
	// The item describes the status of a generic application, for instance the
	// current state of a media player.
	ItemCategoryApplicationStatus ItemCategory = "ApplicationStatus"

	// The item describes the status of communication oriented applications, like
	// an instant messenger or an email client.
	ItemCategoryCommunications ItemCategory = "Communications"

	// The item describes services of the system not seen as a stand alone
	// application by the user, such as an indicator for the activity of a disk
	// indexing service.
	ItemCategorySystemServices ItemCategory = "SystemServices"

	// The item describes the state and control of a particular hardware, such as
	// an indicator of the battery charge or sound card volume control.
	ItemCategoryHardware ItemCategory = "Hardware"
)

type ItemStatus string

// StatusNotifierItem statuses.
const (
	// The item doesn't convey important information to the user, it can be
	// considered an "idle" status and is likely that visualizations will choose
	// to hide it.
	ItemStatusPassive ItemStatus = "Passive"

	// The item is active, is more important that the item will be shown in some
	// way to the user.
	ItemStatusActive ItemStatus = "Active"

	// The item carries really important information for the user, such as battery
	// charge running out and is wants to incentive the direct user intervention.
	// Visualizations should emphasize in some way the items with NeedsAttention
	// status.
	ItemStatusNeedsAttention ItemStatus = "NeedsAttention"
)

// Pixmap is the ARGB32 icon representation defined by the protocol. Items in
// this package carry icon names only, so pixmap arrays are always served
// empty, but the wire shape (iiay) must still be correct.
type Pixmap struct {
	Width  int32
	Height int32
	Bytes  []byte
}

// ToolTip is the tooltip structure associated with the item. It marshals to
// (sa(iiay)ss).
type ToolTip struct {
	IconName    string
	IconPixmaps []Pixmap
	Title       string
	Description string
}

// ItemConfig carries the descriptive fields of the item. All of them are
// fixed at construction and never mutated afterwards.
type ItemConfig struct {
	// Unique identifier for the application, such as the application name.
	ID string

	// Name that describes the application, can be more descriptive than ID.
	Title string

	// Category of the item. Defaults to [ItemCategoryApplicationStatus].
	Category ItemCategory

	// Initial icon of the item, a Freedesktop-compliant icon name.
	// Defaults to [IdleIconName].
	IconName string

	// Icon shown by visualizations while the item needs attention.
	// Defaults to [AttentionIconName].
	AttentionIconName string

	// Path of the served com.canonical.dbusmenu object. Defaults to
	// [MenuPath].
	MenuPath dbus.ObjectPath

	// Windowing-system dependent identifier, 0 when the application does not
	// want to expose a window.
	WindowID uint32
}

// Item represents the application in the system tray and serves
// [StatusNotifierItem].
//
// Only [Item.ChangeStatus] and [Item.ChangeIcon] mutate the item, and both
// suppress the change notification when the value is unchanged. Everything
// else is a read-only snapshot for remote visualizations.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierItem/
type Item struct {
	conn    Bus
	logger  *zap.Logger
	busName string

	mu       sync.Mutex
	config   ItemConfig
	status   ItemStatus
	iconName string
}

// NewItem exports a new [Item] at /StatusNotifierItem and registers it with
// the session's org.kde.StatusNotifierWatcher.
//
// Registration is what makes the item visible, so any failure along the way
// is returned and the item must be considered unusable. A nil logger
// disables logging.
func NewItem(conn Bus, config ItemConfig, logger *zap.Logger) (*Item, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.Category == "" {
		config.Category = ItemCategoryApplicationStatus
	}

	if config.IconName == "" {
		config.IconName = IdleIconName
	}

	if config.AttentionIconName == "" {
		config.AttentionIconName = AttentionIconName
	}

	if config.MenuPath == "" {
		config.MenuPath = MenuPath
	}

	item := &Item{
		conn:     conn,
		logger:   logger,
		busName:  fmt.Sprintf("%s-%d-1", StatusNotifierItemInterface, os.Getpid()),
		config:   config,
		status:   ItemStatusPassive,
		iconName: config.IconName,
	}

	reply, err := conn.RequestName(item.busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("item: failed to request name %s: %w", item.busName, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("item: name %s already taken", item.busName)
	}

	if err := conn.Export(item, StatusNotifierItemPath, StatusNotifierItemInterface); err != nil {
		return nil, fmt.Errorf("item: failed to export %s: %w", StatusNotifierItemInterface, err)
	}

	if err := conn.Export(item, StatusNotifierItemPath, propertiesInterface); err != nil {
		return nil, fmt.Errorf("item: failed to export %s: %w", propertiesInterface, err)
	}

	call := conn.Object(StatusNotifierWatcherInterface, StatusNotifierWatcherPath).Call(
		StatusNotifierWatcherInterface+".RegisterStatusNotifierItem",
		0,
		item.busName,
	)
	if call.Err != nil {
		return nil, fmt.Errorf("item: failed to register with watcher: %w", call.Err)
	}

	logger.Debug("item registered", zap.String("bus_name", item.busName))

	return item, nil
}

// BusName returns the well-known name the item owns on the bus.
func (item *Item) BusName() string {
	return item.busName
}

// Status returns the current status of the item.
func (item *Item) Status() ItemStatus {
	item.mu.Lock()
	defer item.mu.Unlock()

	return item.status
}

// IconName returns the current icon name of the item.
func (item *Item) IconName() string {
	item.mu.Lock()
	defer item.mu.Unlock()

	return item.iconName
}

// ChangeStatus updates the status of the item. Setting the current status
// again is a no-op and emits nothing; otherwise the state is updated first
// and the change notifications are sent after.
func (item *Item) ChangeStatus(status ItemStatus) error {
	item.mu.Lock()

	if item.status == status {
		item.mu.Unlock()
		return nil
	}

	item.status = status
	item.mu.Unlock()

	item.logger.Debug("change status", zap.String("status", string(status)))

	if err := item.conn.Emit(StatusNotifierItemPath, StatusNotifierItemInterface+".NewStatus", string(status)); err != nil {
		return fmt.Errorf("item: failed to emit NewStatus: %w", err)
	}

	return item.emitPropertiesChanged("Status", dbus.MakeVariant(string(status)))
}

// ChangeIcon updates the icon of the item. Setting the current icon name
// again is a no-op and emits nothing.
func (item *Item) ChangeIcon(iconName string) error {
	item.mu.Lock()

	if item.iconName == iconName {
		item.mu.Unlock()
		return nil
	}

	item.iconName = iconName
	item.mu.Unlock()

	item.logger.Debug("change icon", zap.String("icon_name", iconName))

	if err := item.conn.Emit(StatusNotifierItemPath, StatusNotifierItemInterface+".NewIcon"); err != nil {
		return fmt.Errorf("item: failed to emit NewIcon: %w", err)
	}

	return item.emitPropertiesChanged("IconName", dbus.MakeVariant(iconName))
}

// ContextMenu asks the item to show a context menu. The x and y parameters
// are screen-coordinate hints. Visualizations drive the menu through the
// served dbusmenu object instead, so the call is acknowledged and ignored.
func (item *Item) ContextMenu(x, y int32) *dbus.Error {
	item.logger.Debug("context menu", zap.Int32("x", x), zap.Int32("y", y))
	return nil
}

// Activate asks the item for activation, typically a consequence of mouse
// left click on its graphical representation. The call is acknowledged and
// ignored.
func (item *Item) Activate(x, y int32) *dbus.Error {
	item.logger.Debug("activate", zap.Int32("x", x), zap.Int32("y", y))
	return nil
}

// SecondaryActivate is a secondary, less important form of activation,
// typically a mouse middle click. The call is acknowledged and ignored.
func (item *Item) SecondaryActivate(x, y int32) *dbus.Error {
	item.logger.Debug("secondary activate", zap.Int32("x", x), zap.Int32("y", y))
	return nil
}

// Scroll notifies the item of a scroll request. Valid orientations are
// "horizontal" and "vertical". The call is acknowledged and ignored.
func (item *Item) Scroll(delta int32, orientation string) *dbus.Error {
	item.logger.Debug("scroll", zap.Int32("delta", delta), zap.String("orientation", orientation))
	return nil
}

// Get implements org.freedesktop.DBus.Properties.Get. Unknown interfaces and
// properties yield an empty result instead of an error.
func (item *Item) Get(iface, property string) (dbus.Variant, *dbus.Error) {
	value, ok := item.properties(iface)[property]
	if !ok {
		return dbus.MakeVariant(""), nil
	}

	return value, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll. Unknown
// interfaces yield an empty map instead of an error.
func (item *Item) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	return item.properties(iface), nil
}

func (item *Item) properties(iface string) map[string]dbus.Variant {
	if iface != StatusNotifierItemInterface {
		return map[string]dbus.Variant{}
	}

	item.mu.Lock()
	defer item.mu.Unlock()

	return map[string]dbus.Variant{
		"AttentionIconName":   dbus.MakeVariant(item.config.AttentionIconName),
		"AttentionIconPixmap": dbus.MakeVariant([]Pixmap{}),
		"AttentionMovieName":  dbus.MakeVariant(""),
		"Category":            dbus.MakeVariant(string(item.config.Category)),
		"IconName":            dbus.MakeVariant(item.iconName),
		"IconPixmap":          dbus.MakeVariant([]Pixmap{}),
		"Id":                  dbus.MakeVariant(item.config.ID),
		"ItemIsMenu":          dbus.MakeVariant(false),
		"Menu":                dbus.MakeVariant(item.config.MenuPath),
		"OverlayIconName":     dbus.MakeVariant(""),
		"OverlayIconPixmap":   dbus.MakeVariant([]Pixmap{}),
		"Status":              dbus.MakeVariant(string(item.status)),
		"Title":               dbus.MakeVariant(item.config.Title),
		"ToolTip":             dbus.MakeVariant(ToolTip{IconPixmaps: []Pixmap{}}),
		"WindowId":            dbus.MakeVariant(item.config.WindowID),
	}
}

// emitPropertiesChanged broadcasts a property change scoped to a single
// property of the item interface.
func (item *Item) emitPropertiesChanged(property string, value dbus.Variant) error {
	err := item.conn.Emit(
		StatusNotifierItemPath,
		propertiesChangedSignal,
		StatusNotifierItemInterface,
		map[string]dbus.Variant{property: value},
		[]string{},
	)
	if err != nil {
		return fmt.Errorf("item: failed to emit PropertiesChanged: %w", err)
	}

	return nil
}
