package kernel

import (
	"context"
	"fmt"
	"sort"

	"steam-party-bot/pkg/partybot"
)

// kernelCommandCatalog exposes kernel command registrations through ServiceRegistry.
type kernelCommandCatalog struct {
	kernel *Kernel
}

// ListCommands returns all registered command entries sorted by command then module.
func (c *kernelCommandCatalog) ListCommands(ctx context.Context) ([]partybot.CommandCatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	if c == nil || c.kernel == nil {
		return nil, fmt.Errorf("list commands: nil catalog")
	}

	c.kernel.mu.RLock()
	commands := make([]partybot.CommandCatalogEntry, 0, len(c.kernel.commands))
	for _, registration := range c.kernel.commands {
		commands = append(commands, partybot.CommandCatalogEntry{
			ModuleName: registration.moduleName,
			Spec:       registration.spec,
		})
	}
	c.kernel.mu.RUnlock()

	sort.Slice(commands, func(i, j int) bool {
		left := fmt.Sprintf("%s%s", commands[i].Spec.Prefix, commands[i].Spec.Name)
		right := fmt.Sprintf("%s%s", commands[j].Spec.Prefix, commands[j].Spec.Name)
		if left == right {
			return commands[i].ModuleName < commands[j].ModuleName
		}
		return left < right
	})

	return commands, nil
}

var _ partybot.CommandCatalog = (*kernelCommandCatalog)(nil)
