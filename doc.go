// Package statusnotifier exposes an application in the desktop system tray
// without a native GUI toolkit. It implements the application side of the
// [StatusNotifierItem] specification and serves a com.canonical.dbusmenu
// context menu next to it.
//
// # Usage
//
// The tray presence consists of two served D-Bus objects and a facade:
//   - [Item] broadcasts the application status and icon at
//     /StatusNotifierItem and registers itself with the session's
//     org.kde.StatusNotifierWatcher on construction.
//   - [Menu] serves a fixed Show/Hide context menu at /MenuBar and routes
//     remote "clicked" events to action tags.
//   - [Controller] is the only writer of both objects. It translates session
//     and window events of the host application into status, icon, and menu
//     visibility changes, and resolves menu actions against an injected
//     [WindowControl].
//
// In addition, [Watcher] provides an embeddable org.kde.StatusNotifierWatcher
// for deployments where no desktop shell offers one, so the item still has a
// registration target.
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/
package statusnotifier
