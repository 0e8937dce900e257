package stream

import (
	"bufio"
	"io"
	"strings"
)

const maxLineLength = 4096

// SetCommentPrefix configures the prefix that begins a comment running to
// end of line on a text stream. The default ("") means no comment handling.
func (s *Stream) SetCommentPrefix(prefix string) {
	s.commentText = prefix
}

// ReadLine returns one logical non-blank, non-comment line from a text
// stream with the trailing newline stripped, incrementing *counter.
// Over-long lines yield ErrLongLine without advancing past the next newline.
func (s *Stream) ReadLine(counter *int) (string, error) {
	if s.content != ContentText {
		return "", ErrUnsupportIOMode
	}
	if s.lineReader == nil {
		s.lineReader = bufio.NewReaderSize(s.bodyReaderOrRaw(), maxLineLength)
	}

	for {
		line, err := s.lineReader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", ErrIORead.Wrap(err)
		}
		if len(line) > maxLineLength {
			// Over-long: report the error without consuming past the
			// newline we already found (ReadString already did).
			*counter++
			return "", ErrLongLine
		}

		trimmed := strings.TrimRight(line, "\n")
		trimmed = strings.TrimRight(trimmed, "\r")

		*counter++

		if s.commentText != "" {
			if idx := strings.Index(trimmed, s.commentText); idx >= 0 {
				trimmed = trimmed[:idx]
			}
		}
		trimmed = strings.TrimSpace(trimmed)

		if trimmed == "" {
			if err == io.EOF {
				return "", ErrEOF
			}
			continue
		}
		if err == io.EOF {
			return trimmed, nil
		}
		return trimmed, nil
	}
}

func (s *Stream) bodyReaderOrRaw() io.Reader {
	if s.bodyReader != nil {
		return s.bodyReader
	}
	return s.underlyingReader()
}
