package partybot

// Capability describes what a module can process and what services it requires.
type Capability struct {
	Name             string
	Description      string
	Interest         InterestSet
	RequiredServices []string
}

// InterestSet describes event selection criteria for subscriptions.
type InterestSet struct {
	// Kinds restricts delivery to the listed event kinds when non-empty.
	Kinds []EventKind
	// RequireCommand restricts delivery to events carrying a command payload.
	RequireCommand bool
	// CommandNames restricts delivery to the listed command names when non-empty.
	CommandNames []string
}

// Matches reports whether an event satisfies the declared interest set.
func (i InterestSet) Matches(event *Event) bool {
	if event == nil {
		return false
	}
	if len(i.Kinds) > 0 && !containsKind(i.Kinds, event.Kind) {
		return false
	}
	if i.RequireCommand && event.Command == nil {
		return false
	}
	if len(i.CommandNames) > 0 {
		if event.Command == nil {
			return false
		}
		if !containsName(i.CommandNames, event.Command.Name) {
			return false
		}
	}

	return true
}

// Allows reports whether this interest set can safely satisfy another filter.
func (i InterestSet) Allows(filter InterestSet) bool {
	if len(i.Kinds) > 0 {
		for _, kind := range filter.Kinds {
			if !containsKind(i.Kinds, kind) {
				return false
			}
		}
		if len(filter.Kinds) == 0 {
			return false
		}
	}
	if i.RequireCommand && !filter.RequireCommand && len(filter.CommandNames) == 0 {
		return false
	}
	if len(i.CommandNames) > 0 {
		for _, name := range filter.CommandNames {
			if !containsName(i.CommandNames, name) {
				return false
			}
		}
		if len(filter.CommandNames) == 0 {
			return false
		}
	}

	return true
}

func containsKind(kinds []EventKind, target EventKind) bool {
	for _, candidate := range kinds {
		if candidate == target {
			return true
		}
	}

	return false
}

func containsName(names []string, target string) bool {
	normalized := normalizeCommandName(target)
	for _, candidate := range names {
		if normalizeCommandName(candidate) == normalized {
			return true
		}
	}

	return false
}
