// Package notify delivers push messages to console users.
//
// A message has two possible presentation paths: an in-page toast and a
// native OS notification. Both paths call Decide with the page visibility at
// arrival time, so a visible page toasts and a hidden or closed page gets the
// native notification, never both.
//
// The pieces map onto the browser model as follows:
//
//   - ChannelManager is the page-side messaging client: permission,
//     registration token and the foreground listener.
//   - ServiceWorker is the background context: it receives push events,
//     presents native notifications and relays every message to open pages.
//   - PresentationRouter is the page-side listener for worker relays.
//   - Hub tracks the console pages connected to the gateway and serves as
//     the worker's client list.
package notify

import "github.com/duynhne/sawa-admin/internal/core/domain"

// Decide picks the presentation channel for a message.
func Decide(pageVisible bool) domain.PresentationChannel {
	if pageVisible {
		return domain.ChannelToast
	}
	return domain.ChannelNative
}
