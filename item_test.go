package statusnotifier

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(t *testing.T) (*Item, *fakeBus) {
	t.Helper()

	bus := newFakeBus()

	item, err := NewItem(bus, ItemConfig{ID: "tomate", Title: "Tomate"}, nil)
	require.NoError(t, err)

	return item, bus
}

func TestNewItemRegistersWithWatcher(t *testing.T) {
	item, bus := newTestItem(t)

	wantName := fmt.Sprintf("%s-%d-1", StatusNotifierItemInterface, os.Getpid())
	assert.Equal(t, wantName, item.BusName())
	assert.Contains(t, bus.names, wantName)

	assert.Contains(t, bus.exports[StatusNotifierItemPath], StatusNotifierItemInterface)
	assert.Contains(t, bus.exports[StatusNotifierItemPath], propertiesInterface)

	require.Len(t, bus.calls, 1)
	call := bus.calls[0]
	assert.Equal(t, StatusNotifierWatcherInterface, call.Destination)
	assert.Equal(t, dbus.ObjectPath(StatusNotifierWatcherPath), call.Path)
	assert.Equal(t, StatusNotifierWatcherInterface+".RegisterStatusNotifierItem", call.Method)
	assert.Equal(t, []any{wantName}, call.Args)
}

func TestNewItemPropagatesRegistrationFailure(t *testing.T) {
	bus := newFakeBus()
	bus.callErr = errors.New("watcher not available")

	_, err := NewItem(bus, ItemConfig{ID: "tomate"}, nil)

	require.ErrorContains(t, err, "failed to register with watcher")
}

func TestNewItemFailsWhenNameIsTaken(t *testing.T) {
	bus := newFakeBus()
	bus.nameReply = dbus.RequestNameReplyExists

	_, err := NewItem(bus, ItemConfig{ID: "tomate"}, nil)

	require.ErrorContains(t, err, "already taken")
}

func TestChangeStatusEmitsOnce(t *testing.T) {
	item, bus := newTestItem(t)

	require.NoError(t, item.ChangeStatus(ItemStatusActive))
	require.NoError(t, item.ChangeStatus(ItemStatusActive))

	assert.Equal(t, ItemStatusActive, item.Status())

	newStatus := bus.signalsNamed(StatusNotifierItemInterface + ".NewStatus")
	require.Len(t, newStatus, 1)
	assert.Equal(t, []any{"Active"}, newStatus[0].Values)

	changed := bus.signalsNamed(propertiesChangedSignal)
	require.Len(t, changed, 1)
	assert.Equal(t, StatusNotifierItemInterface, changed[0].Values[0])
	assert.Equal(t, map[string]dbus.Variant{"Status": dbus.MakeVariant("Active")}, changed[0].Values[1])
}

func TestChangeIconEmitsOnce(t *testing.T) {
	item, bus := newTestItem(t)

	require.NoError(t, item.ChangeIcon("tomate-50"))
	require.NoError(t, item.ChangeIcon("tomate-50"))

	assert.Equal(t, "tomate-50", item.IconName())

	require.Len(t, bus.signalsNamed(StatusNotifierItemInterface+".NewIcon"), 1)

	changed := bus.signalsNamed(propertiesChangedSignal)
	require.Len(t, changed, 1)
	assert.Equal(t, map[string]dbus.Variant{"IconName": dbus.MakeVariant("tomate-50")}, changed[0].Values[1])
}

func TestItemProperties(t *testing.T) {
	item, _ := newTestItem(t)

	all, derr := item.GetAll(StatusNotifierItemInterface)
	require.Nil(t, derr)

	assert.Equal(t, dbus.MakeVariant("tomate"), all["Id"])
	assert.Equal(t, dbus.MakeVariant("Tomate"), all["Title"])
	assert.Equal(t, dbus.MakeVariant("ApplicationStatus"), all["Category"])
	assert.Equal(t, dbus.MakeVariant("Passive"), all["Status"])
	assert.Equal(t, dbus.MakeVariant(IdleIconName), all["IconName"])
	assert.Equal(t, dbus.MakeVariant(AttentionIconName), all["AttentionIconName"])
	assert.Equal(t, dbus.MakeVariant(false), all["ItemIsMenu"])
	assert.Equal(t, dbus.MakeVariant(dbus.ObjectPath(MenuPath)), all["Menu"])
	assert.Equal(t, dbus.MakeVariant(uint32(0)), all["WindowId"])
	assert.Equal(t, dbus.MakeVariant([]Pixmap{}), all["IconPixmap"])
	assert.Equal(t, dbus.MakeVariant(ToolTip{IconPixmaps: []Pixmap{}}), all["ToolTip"])
}

func TestItemPropertiesTrackState(t *testing.T) {
	item, _ := newTestItem(t)

	require.NoError(t, item.ChangeStatus(ItemStatusNeedsAttention))
	require.NoError(t, item.ChangeIcon("tomate-99"))

	status, derr := item.Get(StatusNotifierItemInterface, "Status")
	require.Nil(t, derr)
	assert.Equal(t, dbus.MakeVariant("NeedsAttention"), status)

	icon, derr := item.Get(StatusNotifierItemInterface, "IconName")
	require.Nil(t, derr)
	assert.Equal(t, dbus.MakeVariant("tomate-99"), icon)
}

func TestItemUnknownPropertiesAreAbsentNotErrors(t *testing.T) {
	item, _ := newTestItem(t)

	value, derr := item.Get("org.example.Unknown", "Title")
	require.Nil(t, derr)
	assert.Equal(t, dbus.MakeVariant(""), value)

	value, derr = item.Get(StatusNotifierItemInterface, "NoSuchProperty")
	require.Nil(t, derr)
	assert.Equal(t, dbus.MakeVariant(""), value)

	all, derr := item.GetAll("org.example.Unknown")
	require.Nil(t, derr)
	assert.Empty(t, all)
}

func TestInteractionMethodsAreInert(t *testing.T) {
	item, bus := newTestItem(t)

	before := len(bus.signals)

	assert.Nil(t, item.Activate(10, 20))
	assert.Nil(t, item.SecondaryActivate(10, 20))
	assert.Nil(t, item.ContextMenu(10, 20))
	assert.Nil(t, item.Scroll(-1, "vertical"))

	assert.Len(t, bus.signals, before)
	assert.Equal(t, ItemStatusPassive, item.Status())
}
