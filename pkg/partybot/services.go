package partybot

import (
	"context"
	"fmt"
)

// Canonical service registry keys.
const (
	// ServiceLogger is the optional structured logger service.
	ServiceLogger = "logger"
	// ServiceOutboundDispatcher is the outbound messaging service.
	ServiceOutboundDispatcher = "partybot.outbound_dispatcher"
	// ServiceCommandCatalog is the registered-command lookup service.
	ServiceCommandCatalog = "partybot.command_catalog"
	// ServiceRegistrationStore is the participant-to-Steam-identity mapping service.
	ServiceRegistrationStore = "partybot.registration_store"
	// ServiceGameLibrary is the cached owned-games lookup service.
	ServiceGameLibrary = "partybot.game_library"
	// ServiceUserResolver is the platform user reference resolution service.
	ServiceUserResolver = "partybot.user_resolver"
)

// ServiceRegistry provides runtime dependency injection to modules and drivers.
type ServiceRegistry interface {
	// Register binds a singleton service value to a stable name.
	Register(name string, service any) error
	// Resolve returns a registered service by name.
	Resolve(name string) (any, error)
}

// ResolveAs resolves a service and casts it to the requested type.
func ResolveAs[T any](registry ServiceRegistry, name string) (T, error) {
	var zero T

	service, err := registry.Resolve(name)
	if err != nil {
		return zero, fmt.Errorf("resolve service %s: %w", name, err)
	}

	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("resolve service %s: type assertion failed", name)
	}

	return typed, nil
}

// CommandCatalogEntry describes one registered command for help rendering.
type CommandCatalogEntry struct {
	// ModuleName identifies the owning module.
	ModuleName string
	// Spec is the registered command specification.
	Spec CommandSpec
}

// CommandCatalog lists registered commands for dynamic help output.
type CommandCatalog interface {
	// ListCommands returns all registered commands in stable name order.
	ListCommands(ctx context.Context) ([]CommandCatalogEntry, error)
}
