package partybot

import (
	"fmt"
	"strings"
)

// CommandPrefix identifies the prefix introducing one command invocation.
type CommandPrefix string

const (
	// CommandPrefixOrdinary identifies ordinary command syntax.
	CommandPrefixOrdinary CommandPrefix = "/"
	// CommandPrefixSystem identifies system command syntax.
	CommandPrefixSystem CommandPrefix = "~"
)

// Validate checks whether one command prefix is supported.
func (p CommandPrefix) Validate() error {
	switch p {
	case CommandPrefixOrdinary, CommandPrefixSystem:
		return nil
	default:
		return fmt.Errorf("validate command prefix: unsupported prefix %q", p)
	}
}

// CommandCandidate is a parsed command-looking message before command-spec binding.
type CommandCandidate struct {
	// Prefix is the leading command prefix.
	Prefix CommandPrefix
	// Name is the normalized command name without prefix and mention suffix.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// RawInput is the original untrimmed message text.
	RawInput string
	// Tokens stores command tail tokens after the command header token.
	Tokens []string
}

// CommandInvocation carries one validated command event payload.
type CommandInvocation struct {
	// Name is the normalized command name.
	Name string
	// Mention is the optional mention suffix from `<name>@<mention>`.
	Mention string
	// Tokens stores the positional arguments after the command header.
	Tokens []string
	// SourceEventID identifies the inbound source event that produced this command.
	SourceEventID string
	// RawInput stores the original inbound message text.
	RawInput string
}

// Validate checks command invocation contract fields.
func (c *CommandInvocation) Validate() error {
	if c == nil {
		return fmt.Errorf("validate command invocation: nil invocation")
	}
	if normalizeCommandName(c.Name) == "" {
		return fmt.Errorf("validate command invocation: missing name")
	}
	if c.SourceEventID == "" {
		return fmt.Errorf("validate command invocation: missing source_event_id")
	}

	return nil
}

// CommandSpec declares one module command registration.
type CommandSpec struct {
	// Prefix identifies which command prefix triggers this command.
	Prefix CommandPrefix
	// Name is the command name without prefix and mention suffix.
	Name string
	// Usage is the optional argument synopsis shown in help and usage replies.
	Usage string
	// Description describes command behavior for diagnostics and help text.
	Description string
}

// Validate checks command specification coherence.
func (s CommandSpec) Validate() error {
	if err := s.Prefix.Validate(); err != nil {
		return fmt.Errorf("validate command spec %q: %w", s.Name, err)
	}
	if normalizeCommandName(s.Name) == "" {
		return fmt.Errorf("validate command spec: missing name")
	}
	if strings.ContainsAny(s.Name, " \t\r\n") {
		return fmt.Errorf("validate command spec: name %q contains whitespace", s.Name)
	}

	return nil
}

// ParseCommandCandidate parses one input text into a command candidate.
//
// matched is false when text does not look like a command. When matched is
// true, candidate fields are populated as much as possible and err reports
// syntax issues such as a missing command name.
func ParseCommandCandidate(text string) (candidate CommandCandidate, matched bool, err error) {
	candidate.RawInput = text

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return candidate, false, nil
	}
	header := fields[0]

	prefix, matched := parseCommandPrefix(header)
	if !matched {
		return candidate, false, nil
	}
	candidate.Prefix = prefix

	name, mention := splitCommandHeader(header[1:])
	candidate.Name = normalizeCommandName(name)
	candidate.Mention = strings.TrimSpace(mention)
	if candidate.Name == "" {
		return candidate, true, fmt.Errorf("parse command candidate: missing command name")
	}

	if len(fields) > 1 {
		candidate.Tokens = append([]string(nil), fields[1:]...)
	}

	return candidate, true, nil
}

// BindCommand validates one parsed candidate against one command spec.
//
// sourceEvent must identify the inbound event that produced this command.
func BindCommand(
	candidate CommandCandidate,
	spec CommandSpec,
	sourceEvent *Event,
) (CommandInvocation, error) {
	if sourceEvent == nil {
		return CommandInvocation{}, fmt.Errorf("bind command: nil source event")
	}
	if err := spec.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}
	if candidate.Prefix != spec.Prefix {
		return CommandInvocation{}, fmt.Errorf(
			"bind command %s: prefix mismatch, got %q want %q",
			spec.Name,
			candidate.Prefix,
			spec.Prefix,
		)
	}

	specName := normalizeCommandName(spec.Name)
	if normalizeCommandName(candidate.Name) != specName {
		return CommandInvocation{}, fmt.Errorf(
			"bind command %s: name mismatch, got %q",
			spec.Name,
			candidate.Name,
		)
	}

	invocation := CommandInvocation{
		Name:          specName,
		Mention:       candidate.Mention,
		Tokens:        append([]string(nil), candidate.Tokens...),
		SourceEventID: sourceEvent.ID,
		RawInput:      candidate.RawInput,
	}
	if err := invocation.Validate(); err != nil {
		return CommandInvocation{}, fmt.Errorf("bind command %s: %w", spec.Name, err)
	}

	return invocation, nil
}

func parseCommandPrefix(token string) (CommandPrefix, bool) {
	switch {
	case strings.HasPrefix(token, string(CommandPrefixOrdinary)):
		return CommandPrefixOrdinary, true
	case strings.HasPrefix(token, string(CommandPrefixSystem)):
		return CommandPrefixSystem, true
	default:
		return "", false
	}
}

func splitCommandHeader(token string) (name string, mention string) {
	if token == "" {
		return "", ""
	}
	separator := strings.Index(token, "@")
	if separator < 0 {
		return token, ""
	}

	return token[:separator], token[separator+1:]
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
