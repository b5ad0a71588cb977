package partybot

import (
	"strings"
	"testing"
	"time"
)

func TestParseCommandCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		text          string
		wantMatched   bool
		wantErrSubstr string
		wantPrefix    CommandPrefix
		wantName      string
		wantMention   string
		wantTokens    []string
	}{
		{
			name:        "ordinary command with mention and tokens",
			text:        " /Add@PartyBot @alice @bob ",
			wantMatched: true,
			wantPrefix:  CommandPrefixOrdinary,
			wantName:    "add",
			wantMention: "PartyBot",
			wantTokens:  []string{"@alice", "@bob"},
		},
		{
			name:        "system command candidate",
			text:        "~flushgames",
			wantMatched: true,
			wantPrefix:  CommandPrefixSystem,
			wantName:    "flushgames",
		},
		{
			name:        "tolerance argument survives as token",
			text:        "/games 2",
			wantMatched: true,
			wantPrefix:  CommandPrefixOrdinary,
			wantName:    "games",
			wantTokens:  []string{"2"},
		},
		{
			name:        "non command text",
			text:        "hello there",
			wantMatched: false,
		},
		{
			name:        "blank text",
			text:        "   ",
			wantMatched: false,
		},
		{
			name:          "missing command name",
			text:          "/",
			wantMatched:   true,
			wantErrSubstr: "missing command name",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			candidate, matched, err := ParseCommandCandidate(testCase.text)
			if matched != testCase.wantMatched {
				t.Fatalf("matched = %v, want %v", matched, testCase.wantMatched)
			}
			if testCase.wantErrSubstr == "" && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.wantErrSubstr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", testCase.wantErrSubstr)
				}
				if !strings.Contains(err.Error(), testCase.wantErrSubstr) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstr)
				}
				return
			}
			if !matched {
				return
			}

			if candidate.Prefix != testCase.wantPrefix {
				t.Fatalf("prefix = %q, want %q", candidate.Prefix, testCase.wantPrefix)
			}
			if candidate.Name != testCase.wantName {
				t.Fatalf("name = %q, want %q", candidate.Name, testCase.wantName)
			}
			if candidate.Mention != testCase.wantMention {
				t.Fatalf("mention = %q, want %q", candidate.Mention, testCase.wantMention)
			}
			if strings.Join(candidate.Tokens, ",") != strings.Join(testCase.wantTokens, ",") {
				t.Fatalf("tokens = %v, want %v", candidate.Tokens, testCase.wantTokens)
			}
		})
	}
}

func TestBindCommand(t *testing.T) {
	t.Parallel()

	spec := CommandSpec{
		Prefix:      CommandPrefixOrdinary,
		Name:        "join",
		Description: "Join the active party.",
	}
	sourceEvent := &Event{
		ID:         "evt-source",
		Kind:       EventKindMessageCreated,
		OccurredAt: time.Unix(10, 0).UTC(),
		Platform:   PlatformTelegram,
		Conversation: Conversation{
			ID:   "chat-1",
			Type: ConversationTypeGroup,
		},
		Message: &Message{ID: "msg-1", Text: "/join"},
	}

	t.Run("binds matching candidate", func(t *testing.T) {
		t.Parallel()

		candidate, matched, err := ParseCommandCandidate("/Join@PartyBot extra")
		if err != nil || !matched {
			t.Fatalf("parse candidate: matched=%v err=%v", matched, err)
		}

		invocation, err := BindCommand(candidate, spec, sourceEvent)
		if err != nil {
			t.Fatalf("bind command failed: %v", err)
		}
		if invocation.Name != "join" {
			t.Fatalf("name = %q, want join", invocation.Name)
		}
		if invocation.Mention != "PartyBot" {
			t.Fatalf("mention = %q, want PartyBot", invocation.Mention)
		}
		if invocation.SourceEventID != "evt-source" {
			t.Fatalf("source event id = %q, want evt-source", invocation.SourceEventID)
		}
		if strings.Join(invocation.Tokens, ",") != "extra" {
			t.Fatalf("tokens = %v, want [extra]", invocation.Tokens)
		}
	})

	t.Run("rejects prefix mismatch", func(t *testing.T) {
		t.Parallel()

		candidate, _, err := ParseCommandCandidate("~join")
		if err != nil {
			t.Fatalf("parse candidate: %v", err)
		}
		if _, err := BindCommand(candidate, spec, sourceEvent); err == nil {
			t.Fatal("expected prefix mismatch error")
		}
	})

	t.Run("rejects name mismatch", func(t *testing.T) {
		t.Parallel()

		candidate, _, err := ParseCommandCandidate("/leave")
		if err != nil {
			t.Fatalf("parse candidate: %v", err)
		}
		if _, err := BindCommand(candidate, spec, sourceEvent); err == nil {
			t.Fatal("expected name mismatch error")
		}
	})

	t.Run("rejects nil source event", func(t *testing.T) {
		t.Parallel()

		candidate, _, err := ParseCommandCandidate("/join")
		if err != nil {
			t.Fatalf("parse candidate: %v", err)
		}
		if _, err := BindCommand(candidate, spec, nil); err == nil {
			t.Fatal("expected nil source event error")
		}
	})
}

func TestCommandSpecValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    CommandSpec
		wantErr bool
	}{
		{name: "valid ordinary", spec: CommandSpec{Prefix: CommandPrefixOrdinary, Name: "party"}},
		{name: "valid system", spec: CommandSpec{Prefix: CommandPrefixSystem, Name: "flushgames"}},
		{name: "unsupported prefix", spec: CommandSpec{Prefix: "!", Name: "party"}, wantErr: true},
		{name: "missing name", spec: CommandSpec{Prefix: CommandPrefixOrdinary}, wantErr: true},
		{name: "whitespace in name", spec: CommandSpec{Prefix: CommandPrefixOrdinary, Name: "bad name"}, wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.spec.Validate()
			if testCase.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !testCase.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
