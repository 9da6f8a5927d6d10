package notify

import "errors"

var (
	// ErrMessagingUnavailable indicates the messaging client failed to initialize.
	ErrMessagingUnavailable = errors.New("messaging client unavailable")

	// ErrVAPIDKeyUnset indicates a missing or placeholder VAPID key.
	ErrVAPIDKeyUnset = errors.New("vapid key is not configured")

	// ErrMalformedVAPIDKey indicates a key that is not a base64url encoded
	// uncompressed P-256 public key.
	ErrMalformedVAPIDKey = errors.New("vapid key is malformed")

	// ErrUnknownPage indicates a page id the hub does not know.
	ErrUnknownPage = errors.New("unknown page")

	// ErrPageBufferFull indicates a page is not draining its event stream.
	ErrPageBufferFull = errors.New("page event buffer full")

	// ErrMissingRecipient indicates a push event without a user id.
	ErrMissingRecipient = errors.New("push event has no recipient")

	// ErrWorkerStopped indicates the service worker no longer accepts events.
	ErrWorkerStopped = errors.New("service worker stopped")
)
