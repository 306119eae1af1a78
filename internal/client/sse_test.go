package client

import (
	"errors"
	"strings"
	"testing"
)

func TestSSEScanner(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []sseEvent
	}{
		{
			name:  "single event",
			input: "data: {\"a\":1}\n\n",
			want:  []sseEvent{{Data: `{"a":1}`}},
		},
		{
			name:  "multiple events with CRLF",
			input: "data: one\r\n\r\ndata: two\r\n\r\n",
			want:  []sseEvent{{Data: "one"}, {Data: "two"}},
		},
		{
			name:  "multi-line data and event type",
			input: "event: snapshot\ndata: a\ndata: b\n\n",
			want:  []sseEvent{{Type: "snapshot", Data: "a\nb"}},
		},
		{
			name:  "comments and unknown fields ignored",
			input: ": keep-alive\nid: 7\nretry: 100\ndata:x\n\n",
			want:  []sseEvent{{Data: "x"}},
		},
		{
			name:  "blank blocks skipped",
			input: "\n\n\ndata: late\n\n",
			want:  []sseEvent{{Data: "late"}},
		},
		{
			name:  "final event without trailing blank line",
			input: "data: first\n\ndata: last",
			want:  []sseEvent{{Data: "first"}, {Data: "last"}},
		},
		{
			name:  "empty stream",
			input: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSSEScanner(strings.NewReader(tt.input))
			var got []sseEvent
			for s.Next() {
				got = append(got, s.Event())
			}
			if err := s.Err(); err != nil {
				t.Fatalf("Err() = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events %+v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestSSEScannerReadError(t *testing.T) {
	boom := errors.New("connection reset")
	s := newSSEScanner(failingReader{err: boom})
	if s.Next() {
		t.Fatal("Next() = true on failing reader")
	}
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("Err() = %v, want %v", s.Err(), boom)
	}
}
