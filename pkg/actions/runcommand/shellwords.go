package runcommand

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote is returned when a command string ends inside a
// quoted section.
var ErrUnterminatedQuote = errors.New("unterminated quote in command")

// SplitArgs tokenizes a command string into an argv vector using shell-like
// quoting rules: single quotes take everything literally, double quotes
// allow backslash escapes, and an unquoted backslash escapes the next rune.
// No shell is ever involved, so no expansion or substitution happens.
func SplitArgs(input string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
	)

	const (
		stateNone = iota
		stateSingle
		stateDouble
	)

	state := stateNone
	escaped := false

	for _, r := range input {
		if escaped {
			current.WriteRune(r)

			escaped = false
			inWord = true

			continue
		}

		switch state {
		case stateSingle:
			if r == '\'' {
				state = stateNone
			} else {
				current.WriteRune(r)
			}
		case stateDouble:
			switch r {
			case '"':
				state = stateNone
			case '\\':
				escaped = true
			default:
				current.WriteRune(r)
			}
		default:
			switch {
			case r == '\'':
				state = stateSingle
				inWord = true
			case r == '"':
				state = stateDouble
				inWord = true
			case r == '\\':
				escaped = true
			case r == ' ' || r == '\t' || r == '\n':
				if inWord {
					args = append(args, current.String())
					current.Reset()

					inWord = false
				}
			default:
				current.WriteRune(r)
				inWord = true
			}
		}
	}

	if state != stateNone || escaped {
		return nil, ErrUnterminatedQuote
	}

	if inWord {
		args = append(args, current.String())
	}

	return args, nil
}
