package statusnotifier

import (
	"fmt"
	"slices"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	MenuInterface = "com.canonical.dbusmenu"
	MenuPath      = "/MenuBar"
)

// Well-known entry ids of the menu. Id 0 is reserved for the root.
const (
	RootEntryID int32 = 0
	ShowEntryID int32 = 1
	HideEntryID int32 = 2
)

// menuVersion is the version of the com.canonical.dbusmenu API served by
// [Menu].
const menuVersion uint32 = 4

type MenuStatus string

// Menu statuses.
const (
	// The menu is in a normal state, which is the case almost always.
	MenuStatusNormal MenuStatus = "normal"

	// The menu should have a higher priority to be shown.
	MenuStatusNotice MenuStatus = "notice"
)

const errInvalidArgs = "org.freedesktop.DBus.Error.InvalidArgs"

// Menu serves the com.canonical.dbusmenu interface for the tray item.
//
// The layout is built once at construction and never structurally changes:
// a root entry with two children, Show and Hide, whose visibility is toggled
// through [Menu.UpdateVisibility]. Remote callers only read the layout or
// trigger bound actions through [Menu.Event]; the revision therefore stays
// at its initial value for the lifetime of the process.
type Menu struct {
	conn     Bus
	logger   *zap.Logger
	mu       sync.Mutex
	revision uint32
	entries  map[int32]*entry
	onAction func(Action)
}

// NewMenu exports a new [Menu] at /MenuBar.
//
// The menu dispatches no actions until a callback is installed with
// [Menu.OnAction]. A nil logger disables logging.
func NewMenu(conn Bus, logger *zap.Logger) (*Menu, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Menu{
		conn:   conn,
		logger: logger,
		entries: map[int32]*entry{
			RootEntryID: {
				id:              RootEntryID,
				typ:             EntryTypeStandard,
				enabled:         true,
				visible:         true,
				toggleState:     ToggleStateIndeterminate,
				childrenDisplay: "submenu",
				disposition:     DispositionNormal,
				children:        []int32{ShowEntryID, HideEntryID},
			},
			ShowEntryID: {
				id:          ShowEntryID,
				typ:         EntryTypeStandard,
				label:       "Show",
				enabled:     true,
				visible:     false,
				toggleState: ToggleStateIndeterminate,
				disposition: DispositionNormal,
				action:      ActionShowWindow,
			},
			HideEntryID: {
				id:          HideEntryID,
				typ:         EntryTypeStandard,
				label:       "Hide",
				enabled:     true,
				visible:     true,
				toggleState: ToggleStateIndeterminate,
				disposition: DispositionNormal,
				action:      ActionHideWindow,
			},
		},
		onAction: func(Action) {},
	}

	if err := conn.Export(m, MenuPath, MenuInterface); err != nil {
		return nil, fmt.Errorf("menu: failed to export %s: %w", MenuInterface, err)
	}

	if err := conn.Export(m, MenuPath, propertiesInterface); err != nil {
		return nil, fmt.Errorf("menu: failed to export %s: %w", propertiesInterface, err)
	}

	return m, nil
}

// OnAction registers the callback invoked when a remote "clicked" event
// resolves to an entry with a bound action. The controller installs its
// dispatch here; the default is a no-op.
func (m *Menu) OnAction(callback func(Action)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onAction = callback
}

// UpdateVisibility reconciles the menu with the visibility of the
// application window: Show is offered while the window is hidden, Hide while
// it is shown. The ItemsPropertiesUpdated signal is re-emitted on every call,
// even when the rendered state did not change.
func (m *Menu) UpdateVisibility(windowVisible bool) error {
	m.mu.Lock()

	m.entries[ShowEntryID].visible = !windowVisible
	m.entries[HideEntryID].visible = windowVisible

	updated := []EntryProperties{
		{ID: ShowEntryID, Properties: m.entries[ShowEntryID].render(nil)},
		{ID: HideEntryID, Properties: m.entries[HideEntryID].render(nil)},
	}

	m.mu.Unlock()

	m.logger.Debug("update menu visibility", zap.Bool("window_visible", windowVisible))

	return m.conn.Emit(
		MenuPath,
		MenuInterface+".ItemsPropertiesUpdated",
		updated,
		[]RemovedProperties{},
	)
}

// GetLayout provides the layout and the properties attached to the entries
// that are in it, starting from the entry named by parentID.
//
// recursionDepth limits how many levels below the parent are rendered: -1
// delivers the entire subtree, 0 only the parent itself with an empty
// children array. propertyNames restricts the returned properties to the
// named subset; an empty list returns all of them.
func (m *Menu) GetLayout(parentID int32, recursionDepth int32, propertyNames []string) (uint32, LayoutNode, *dbus.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("get layout",
		zap.Int32("parent_id", parentID),
		zap.Int32("recursion_depth", recursionDepth),
		zap.Strings("property_names", propertyNames),
	)

	if _, ok := m.entries[parentID]; !ok {
		return 0, LayoutNode{}, dbus.NewError(errInvalidArgs, []any{fmt.Sprintf("unknown menu entry: %d", parentID)})
	}

	return m.revision, renderLayout(m.entries, parentID, recursionDepth, propertyNames), nil
}

// GetGroupProperties renders the properties of every listed entry that is
// present in the model. Unknown ids are silently dropped from the result.
// An empty id list renders all entries.
func (m *Menu) GetGroupProperties(ids []int32, propertyNames []string) ([]EntryProperties, *dbus.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("get group properties", zap.Int32s("ids", ids))

	if len(ids) == 0 {
		for id := range m.entries {
			ids = append(ids, id)
		}
		slices.Sort(ids)
	}

	group := make([]EntryProperties, 0, len(ids))

	for _, id := range ids {
		e, ok := m.entries[id]
		if !ok {
			continue
		}

		group = append(group, EntryProperties{ID: id, Properties: e.render(propertyNames)})
	}

	return group, nil
}

// GetProperty returns a single property of a single entry. Unlike the group
// queries, naming an unknown entry or property is an error.
func (m *Menu) GetProperty(id int32, name string) (dbus.Variant, *dbus.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Debug("get property", zap.Int32("id", id), zap.String("name", name))

	e, ok := m.entries[id]
	if !ok {
		return dbus.Variant{}, dbus.NewError(errInvalidArgs, []any{fmt.Sprintf("unknown menu entry: %d", id)})
	}

	value, ok := e.property(name)
	if !ok {
		return dbus.Variant{}, dbus.NewError(errInvalidArgs, []any{fmt.Sprintf("unknown menu entry property: %s", name)})
	}

	return value, nil
}

// Event notifies the menu that an event happened on an entry. A "clicked"
// event on an entry with a bound action dispatches the action; every other
// combination, including unknown entries, unknown event ids, and
// vendor-prefixed ("x-<vendor>-*") event ids, is silently ignored.
func (m *Menu) Event(id int32, eventID string, data dbus.Variant, timestamp uint32) *dbus.Error {
	m.dispatchEvent(id, eventID)
	return nil
}

// EventGroup applies [Menu.Event] to each element of the batch in order and
// returns the ids that are not present in the model.
func (m *Menu) EventGroup(events [][]any) ([]int32, *dbus.Error) {
	unresolved := []int32{}

	for _, event := range events {
		if len(event) < 2 {
			continue
		}

		id, ok := event[0].(int32)
		if !ok {
			continue
		}

		eventID, ok := event[1].(string)
		if !ok {
			continue
		}

		if !m.dispatchEvent(id, eventID) {
			unresolved = append(unresolved, id)
		}
	}

	return unresolved, nil
}

// AboutToShow reports whether the caller should refresh the layout before
// displaying it. Visibility toggles already push their own notification, so
// the answer is always false.
func (m *Menu) AboutToShow(id int32) (bool, *dbus.Error) {
	m.logger.Debug("about to show", zap.Int32("id", id))

	return false, nil
}

// AboutToShowGroup is the batched form of [Menu.AboutToShow]. No entry ever
// needs an update, so both result lists are empty.
func (m *Menu) AboutToShowGroup(ids []int32, updatesNeeded []int32) ([]int32, []int32, *dbus.Error) {
	return []int32{}, []int32{}, nil
}

// Get implements org.freedesktop.DBus.Properties.Get. Unknown interfaces and
// properties yield an empty result instead of an error.
func (m *Menu) Get(iface, property string) (dbus.Variant, *dbus.Error) {
	value, ok := m.properties(iface)[property]
	if !ok {
		return dbus.MakeVariant(""), nil
	}

	return value, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll. Unknown
// interfaces yield an empty map instead of an error.
func (m *Menu) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	return m.properties(iface), nil
}

// dispatchEvent resolves an event against the model and reports whether the
// entry exists. The bound action runs outside the model lock, so actions may
// call back into the menu.
func (m *Menu) dispatchEvent(id int32, eventID string) bool {
	m.mu.Lock()

	e, ok := m.entries[id]
	onAction := m.onAction

	var action Action
	if ok {
		action = e.action
	}

	m.mu.Unlock()

	m.logger.Debug("menu event", zap.Int32("id", id), zap.String("event_id", eventID))

	if !ok {
		return false
	}

	if eventID == "clicked" && action != ActionNone {
		onAction(action)
	}

	return true
}

func (m *Menu) properties(iface string) map[string]dbus.Variant {
	if iface != MenuInterface {
		return map[string]dbus.Variant{}
	}

	return map[string]dbus.Variant{
		"Version":       dbus.MakeVariant(menuVersion),
		"TextDirection": dbus.MakeVariant("ltr"),
		"Status":        dbus.MakeVariant(string(MenuStatusNormal)),
	}
}
