package statusnotifier

import "github.com/godbus/dbus/v5"

type EntryType string

// Menu entry types.
const (
	// An entry which can be clicked to trigger an action.
	EntryTypeStandard EntryType = "standard"

	// A visual separator between entries.
	EntryTypeSeparator EntryType = "separator"
)

type ToggleType string

// Menu entry toggle types.
const (
	// The entry cannot be toggled.
	ToggleTypeNone ToggleType = ""

	// The entry is an independent togglable entry.
	ToggleTypeCheckmark ToggleType = "checkmark"

	// The entry is part of a group where only one entry can be toggled at
	// a time.
	ToggleTypeRadio ToggleType = "radio"
)

// Toggle states of a togglable entry.
const (
	ToggleStateIndeterminate int32 = -1
	ToggleStateOff           int32 = 0
	ToggleStateOn            int32 = 1
)

type Disposition string

// Dispositions hint how an entry's information should be presented.
const (
	DispositionNormal      Disposition = "normal"
	DispositionInformative Disposition = "informative"
	DispositionWarning     Disposition = "warning"
	DispositionAlert       Disposition = "alert"
)

// Action is the tag bound to a menu entry, dispatched when a remote "clicked"
// event names the entry. Entries tagged ActionNone ignore events.
type Action int

const (
	ActionNone Action = iota
	ActionShowWindow
	ActionHideWindow
)

// entry is a node of the menu model. Ids are assigned at construction and
// never change; children are wired once and never mutated afterwards, so the
// model stays a tree. Only the visible flag changes after construction.
type entry struct {
	id              int32
	typ             EntryType
	label           string
	iconName        string
	enabled         bool
	visible         bool
	toggleType      ToggleType
	toggleState     int32
	childrenDisplay string
	disposition     Disposition
	children        []int32
	action          Action
}

// entryProperties is the full set of property names an entry renders to.
var entryProperties = []string{
	"children-display",
	"disposition",
	"enabled",
	"icon-name",
	"label",
	"toggle-state",
	"toggle-type",
	"type",
	"visible",
}

// property projects a single named property of the entry. The bool result
// reports whether the name belongs to the property set.
func (e *entry) property(name string) (dbus.Variant, bool) {
	switch name {
	case "children-display":
		return dbus.MakeVariant(e.childrenDisplay), true
	case "disposition":
		return dbus.MakeVariant(string(e.disposition)), true
	case "enabled":
		return dbus.MakeVariant(e.enabled), true
	case "icon-name":
		return dbus.MakeVariant(e.iconName), true
	case "label":
		return dbus.MakeVariant(e.label), true
	case "toggle-state":
		return dbus.MakeVariant(e.toggleState), true
	case "toggle-type":
		return dbus.MakeVariant(string(e.toggleType)), true
	case "type":
		return dbus.MakeVariant(string(e.typ)), true
	case "visible":
		return dbus.MakeVariant(e.visible), true
	default:
		return dbus.Variant{}, false
	}
}

// render projects the entry into a property bag, restricted to the requested
// names. An empty filter selects all properties; unknown names are skipped.
func (e *entry) render(propertyNames []string) map[string]dbus.Variant {
	names := propertyNames
	if len(names) == 0 {
		names = entryProperties
	}

	props := make(map[string]dbus.Variant, len(names))

	for _, name := range names {
		if value, ok := e.property(name); ok {
			props[name] = value
		}
	}

	return props
}

// LayoutNode is a single node of the layout returned by [Menu.GetLayout].
// It marshals to the (ia{sv}av) structure defined by com.canonical.dbusmenu,
// with every child wrapped in a variant of the same structure.
type LayoutNode struct {
	ID         int32
	Properties map[string]dbus.Variant
	Children   []dbus.Variant
}

// EntryProperties is the rendered property bag of a single entry, as returned
// by [Menu.GetGroupProperties] and carried by the ItemsPropertiesUpdated
// signal. It marshals to (ia{sv}).
type EntryProperties struct {
	ID         int32
	Properties map[string]dbus.Variant
}

// RemovedProperties names properties removed from a single entry in the
// ItemsPropertiesUpdated signal. It marshals to (ias).
type RemovedProperties struct {
	ID         int32
	Properties []string
}

// renderLayout renders the subtree rooted at id. A depth of 0 renders the
// bare node with an empty children array, a negative depth disables the
// recursion limit.
func renderLayout(entries map[int32]*entry, id int32, depth int32, propertyNames []string) LayoutNode {
	e := entries[id]

	node := LayoutNode{
		ID:         id,
		Properties: e.render(propertyNames),
		Children:   []dbus.Variant{},
	}

	if depth == 0 {
		return node
	}

	for _, childID := range e.children {
		child := renderLayout(entries, childID, depth-1, propertyNames)
		node.Children = append(node.Children, dbus.MakeVariant(child))
	}

	return node
}
