package statusnotifier

import (
	"sync"

	"go.uber.org/zap"
)

// Phase of the session as seen by the controller.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseInterrupted
)

// WindowControl is the capability the controller resolves menu actions
// against. The application window stays owned by the host; the controller
// only asks it to show or hide itself.
type WindowControl interface {
	Show()
	Hide()
}

// Controller translates host application events into calls against [Item]
// and [Menu]. It is the only writer of the item state and of the menu
// visibility; remote callers never mutate either directly.
//
// Controller methods never fail: any error from a service call is logged and
// suppressed so that the notification layer cannot interrupt the host's own
// control flow.
type Controller struct {
	item   *Item
	menu   *Menu
	window WindowControl
	logger *zap.Logger
	events IncrementalCounter

	mu        sync.Mutex
	phase     Phase
	activated bool
}

// NewController wires a new [Controller] to the given services and installs
// its action dispatch on the menu. The controller starts activated, in the
// Idle phase. A nil logger disables logging, a nil counter discards counts.
func NewController(item *Item, menu *Menu, window WindowControl, logger *zap.Logger, events IncrementalCounter) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}

	if events == nil {
		events = NopCounter()
	}

	c := &Controller{
		item:      item,
		menu:      menu,
		window:    window,
		logger:    logger,
		events:    events,
		phase:     PhaseIdle,
		activated: true,
	}

	menu.OnAction(c.dispatchAction)

	return c
}

// Phase returns the current session phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Activate re-enables event handling after [Controller.Deactivate]. When a
// session is already running, the Active status is replayed so the tray
// catches up.
func (c *Controller) Activate() {
	c.mu.Lock()
	c.activated = true
	running := c.phase == PhaseRunning
	c.mu.Unlock()

	c.logger.Debug("activate controller")

	if running {
		c.changeStatus(ItemStatusActive)
	}
}

// Deactivate forces the item back to Passive and turns every subsequent
// event handler into a no-op until [Controller.Activate] is called.
func (c *Controller) Deactivate() {
	c.logger.Debug("deactivate controller")

	c.changeStatus(ItemStatusPassive)

	c.mu.Lock()
	c.activated = false
	c.mu.Unlock()
}

// OnSessionStart marks the session as running, activates the item, and
// shows the menu in its window-visible arrangement.
func (c *Controller) OnSessionStart() {
	if !c.enterPhase(PhaseRunning) {
		return
	}

	c.logger.Debug("session started")
	c.events.Increment("session_start")

	c.changeStatus(ItemStatusActive)
	c.changeVisibility(true)
}

// OnSessionInterrupt marks the session as interrupted and puts the item
// back to Passive.
func (c *Controller) OnSessionInterrupt() {
	if !c.enterPhase(PhaseInterrupted) {
		return
	}

	c.logger.Debug("session interrupted")
	c.events.Increment("session_interrupt")

	c.changeStatus(ItemStatusPassive)
}

// OnSessionEnd marks the session as finished and puts the item back to
// Passive.
func (c *Controller) OnSessionEnd() {
	if !c.enterPhase(PhaseIdle) {
		return
	}

	c.logger.Debug("session ended")
	c.events.Increment("session_end")

	c.changeStatus(ItemStatusPassive)
}

// OnTimerUpdate refreshes the item icon from the elapsed percent of the
// running session. Repeated ticks mapping to the same icon name emit
// nothing, as the item suppresses no-op changes.
func (c *Controller) OnTimerUpdate(elapsedPercent float64) {
	if !c.isActivated() {
		return
	}

	c.changeIcon(SessionIconName(elapsedPercent))
}

// OnWindowShown reconciles the menu with a window that became visible.
func (c *Controller) OnWindowShown() {
	if !c.isActivated() {
		return
	}

	c.events.Increment("window_show")
	c.changeVisibility(true)
}

// OnWindowHidden reconciles the menu with a window that was hidden.
func (c *Controller) OnWindowHidden() {
	if !c.isActivated() {
		return
	}

	c.events.Increment("window_hide")
	c.changeVisibility(false)
}

// dispatchAction resolves a menu action tag against the window capability.
// Installed on the menu by [NewController].
func (c *Controller) dispatchAction(action Action) {
	if !c.isActivated() {
		return
	}

	switch action {
	case ActionShowWindow:
		c.logger.Debug("show window action dispatched")
		c.events.Increment("action_show")
		c.window.Show()
	case ActionHideWindow:
		c.logger.Debug("hide window action dispatched")
		c.events.Increment("action_hide")
		c.window.Hide()
	}
}

// enterPhase transitions to the given phase and reports whether the
// controller is activated.
func (c *Controller) enterPhase(phase Phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.activated {
		return false
	}

	c.phase = phase

	return true
}

func (c *Controller) isActivated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.activated
}

func (c *Controller) changeStatus(status ItemStatus) {
	if err := c.item.ChangeStatus(status); err != nil {
		c.logger.Warn("failed to change item status", zap.Error(err))
	}
}

func (c *Controller) changeIcon(iconName string) {
	if err := c.item.ChangeIcon(iconName); err != nil {
		c.logger.Warn("failed to change item icon", zap.Error(err))
	}
}

func (c *Controller) changeVisibility(windowVisible bool) {
	if err := c.menu.UpdateVisibility(windowVisible); err != nil {
		c.logger.Warn("failed to update menu visibility", zap.Error(err))
	}
}
