package aimod

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type fakeCompleter struct {
	output string
	err    error
	calls  int
	lastIn string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, user string) (string, error) {
	f.calls++
	f.lastIn = user
	return f.output, f.err
}

func TestScanParsesVerdict(t *testing.T) {
	tests := []struct {
		name           string
		output         string
		wantFlagged    bool
		wantSeverity   int
		wantActionable bool
	}{
		{
			name:           "clean message",
			output:         `{"flagged": false, "severity": 0, "reason": "harmless"}`,
			wantFlagged:    false,
			wantSeverity:   0,
			wantActionable: false,
		},
		{
			name:           "flagged above floor",
			output:         `{"flagged": true, "severity": 3, "reason": "targeted abuse"}`,
			wantFlagged:    true,
			wantSeverity:   3,
			wantActionable: true,
		},
		{
			name:           "flagged below floor",
			output:         `{"flagged": true, "severity": 1, "reason": "borderline"}`,
			wantFlagged:    true,
			wantSeverity:   1,
			wantActionable: false,
		},
		{
			name:           "code fenced output",
			output:         "```json\n{\"flagged\": true, \"severity\": 2, \"reason\": \"spam\"}\n```",
			wantFlagged:    true,
			wantSeverity:   2,
			wantActionable: true,
		},
		{
			name:           "severity clamped",
			output:         `{"flagged": true, "severity": 9, "reason": "overcooked"}`,
			wantFlagged:    true,
			wantSeverity:   3,
			wantActionable: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(&fakeCompleter{output: tc.output}, nil, 2, zap.NewNop())

			res, err := svc.Scan(context.Background(), Message{
				GuildID: "g1", Content: "some message",
			})
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if !res.Scanned {
				t.Fatalf("Scanned = false, want true")
			}
			if res.Verdict.Flagged != tc.wantFlagged {
				t.Fatalf("Flagged = %v, want %v", res.Verdict.Flagged, tc.wantFlagged)
			}
			if res.Verdict.Severity != tc.wantSeverity {
				t.Fatalf("Severity = %d, want %d", res.Verdict.Severity, tc.wantSeverity)
			}
			if res.Actionable != tc.wantActionable {
				t.Fatalf("Actionable = %v, want %v", res.Actionable, tc.wantActionable)
			}
		})
	}
}

func TestScanSkipsEmptyContent(t *testing.T) {
	completer := &fakeCompleter{output: `{"flagged": false, "severity": 0, "reason": ""}`}
	svc := NewService(completer, nil, 2, zap.NewNop())

	res, err := svc.Scan(context.Background(), Message{GuildID: "g1", Content: "   "})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Scanned {
		t.Fatalf("Scanned = true, want false for blank content")
	}
	if completer.calls != 0 {
		t.Fatalf("completer called %d times, want 0", completer.calls)
	}
}

func TestScanTruncatesLongContent(t *testing.T) {
	completer := &fakeCompleter{output: `{"flagged": false, "severity": 0, "reason": ""}`}
	svc := NewService(completer, nil, 2, zap.NewNop())

	long := strings.Repeat("字", maxContentRunes+500)
	if _, err := svc.Scan(context.Background(), Message{GuildID: "g1", Content: long}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := len([]rune(completer.lastIn)); got != maxContentRunes {
		t.Fatalf("sent %d runes, want %d", got, maxContentRunes)
	}
}

func TestScanRejectsGarbageOutput(t *testing.T) {
	svc := NewService(&fakeCompleter{output: "I cannot help with that."}, nil, 2, zap.NewNop())

	if _, err := svc.Scan(context.Background(), Message{GuildID: "g1", Content: "hi"}); err == nil {
		t.Fatalf("Scan succeeded on non-JSON output, want error")
	}
}

func TestDisabledServiceIsNoOp(t *testing.T) {
	svc := NewService(nil, nil, 2, zap.NewNop())

	res, err := svc.Scan(context.Background(), Message{GuildID: "g1", Content: "hi"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Scanned {
		t.Fatalf("Scanned = true, want false when disabled")
	}
}
