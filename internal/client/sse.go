package client

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is a single Server-Sent Event.
type sseEvent struct {
	Type string
	Data string
}

// sseScanner reads Server-Sent Events. Events are delimited by blank
// lines; "data:" lines are joined with newlines; comments (":") and
// unknown fields are ignored.
type sseScanner struct {
	reader  *bufio.Reader
	current sseEvent
	err     error
}

func newSSEScanner(r io.Reader) *sseScanner {
	return &sseScanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event. After it returns false, Err tells EOF
// (nil) apart from a read error.
func (s *sseScanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.current = sseEvent{}

	var (
		data      []string
		eventType string
		hasData   bool
	)
	emit := func() {
		s.current = sseEvent{Type: eventType, Data: strings.Join(data, "\n")}
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				emit()
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if hasData {
				emit()
				return true
			}
			eventType = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			eventType = value
		}
	}
}

func (s *sseScanner) Event() sseEvent { return s.current }

func (s *sseScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
