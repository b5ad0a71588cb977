package partybot

import "errors"

var (
	// ErrInvalidEvent indicates that an event does not satisfy protocol invariants.
	ErrInvalidEvent = errors.New("partybot: invalid event")
	// ErrInvalidSubscription indicates that a subscription configuration is invalid.
	ErrInvalidSubscription = errors.New("partybot: invalid subscription")
	// ErrSubscriptionClosed indicates that a subscription is no longer active.
	ErrSubscriptionClosed = errors.New("partybot: subscription closed")
	// ErrEventDropped indicates a non-blocking backpressure drop.
	ErrEventDropped = errors.New("partybot: event dropped due to backpressure")
	// ErrServiceAlreadyRegistered indicates duplicate service registration.
	ErrServiceAlreadyRegistered = errors.New("partybot: service already registered")
	// ErrServiceNotFound indicates a service lookup miss.
	ErrServiceNotFound = errors.New("partybot: service not found")
	// ErrModuleAlreadyRegistered indicates duplicate module registration.
	ErrModuleAlreadyRegistered = errors.New("partybot: module already registered")
	// ErrDriverAlreadyRegistered indicates duplicate driver registration.
	ErrDriverAlreadyRegistered = errors.New("partybot: driver already registered")
	// ErrInvalidOutboundRequest indicates an outbound request failed validation.
	ErrInvalidOutboundRequest = errors.New("partybot: invalid outbound request")
	// ErrOutboundUnsupported indicates an outbound operation the platform cannot perform.
	ErrOutboundUnsupported = errors.New("partybot: outbound operation unsupported")

	// ErrPartyAlreadyActive indicates a second party start while one is live in the chat.
	ErrPartyAlreadyActive = errors.New("partybot: party already active")
	// ErrNotRegistered indicates a participant without a stored Steam identity.
	ErrNotRegistered = errors.New("partybot: participant not registered")
	// ErrLookupFailed indicates a Steam catalog fetch failure, including private profiles.
	ErrLookupFailed = errors.New("partybot: owned games lookup failed")
	// ErrLineTooLong indicates a single rendered line exceeding the transport message
	// ceiling. This is an internal invariant violation, never a truncation condition.
	ErrLineTooLong = errors.New("partybot: line exceeds message limit")
)
