// Package sqlscript splits SQL scripts into statements and classifies them.
//
// It is a byte-level scanner, not a parser: it only needs to know where string
// literals, quoted identifiers and comments start and end so that semicolons
// inside them do not terminate a statement.
package sqlscript

import (
	"strings"
)

// scanner walks a script one byte at a time.
type scanner struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

func newScanner(input string) *scanner {
	s := &scanner{input: input}
	s.readChar()
	return s
}

func (s *scanner) readChar() {
	if s.readPos >= len(s.input) {
		s.ch = 0 // NUL = EOF
	} else {
		s.ch = s.input[s.readPos]
	}
	s.pos = s.readPos
	s.readPos++
}

func (s *scanner) peekChar() byte {
	if s.readPos >= len(s.input) {
		return 0
	}
	return s.input[s.readPos]
}

// skipQuoted consumes a literal delimited by q, honouring doubled-q escapes.
func (s *scanner) skipQuoted(q byte) {
	s.readChar() // opening quote
	for s.ch != 0 {
		if s.ch == q {
			if s.peekChar() == q {
				s.readChar()
				s.readChar()
				continue
			}
			s.readChar() // closing quote
			return
		}
		s.readChar()
	}
}

// skipComment consumes a comment starting at the current position and reports
// whether there was one.
func (s *scanner) skipComment() bool {
	switch {
	case s.ch == '-' && s.peekChar() == '-':
		for s.ch != '\n' && s.ch != 0 {
			s.readChar()
		}
		return true
	case s.ch == '/' && s.peekChar() == '*':
		s.readChar() // skip /
		s.readChar() // skip *
		for s.ch != 0 {
			if s.ch == '*' && s.peekChar() == '/' {
				s.readChar() // skip *
				s.readChar() // skip /
				break
			}
			s.readChar()
		}
		return true
	}
	return false
}

// Split returns the statements of script in order, trimmed and without their
// terminating semicolons. Statements that are empty or contain only comments
// are dropped.
func Split(script string) []string {
	var out []string
	s := newScanner(script)
	start := 0
	flush := func(end int) {
		stmt := strings.TrimSpace(script[start:end])
		if stmt != "" && FirstKeyword(stmt) != "" {
			out = append(out, stmt)
		}
	}
	for s.ch != 0 {
		switch {
		case s.ch == '\'' || s.ch == '"':
			s.skipQuoted(s.ch)
		case s.skipComment():
		case s.ch == ';':
			flush(s.pos)
			s.readChar()
			start = s.pos
		default:
			s.readChar()
		}
	}
	flush(len(script))
	return out
}

// FirstKeyword returns the upper-cased leading word of stmt, skipping
// whitespace, comments and opening parentheses. It returns "" when the
// statement has no leading word.
func FirstKeyword(stmt string) string {
	s := newScanner(stmt)
	for {
		for s.ch == ' ' || s.ch == '\t' || s.ch == '\n' || s.ch == '\r' || s.ch == '(' {
			s.readChar()
		}
		if !s.skipComment() {
			break
		}
	}
	start := s.pos
	for isWordChar(s.ch) {
		s.readChar()
	}
	if start >= len(stmt) {
		return ""
	}
	return strings.ToUpper(stmt[start:s.pos])
}

func isWordChar(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// readOnlyKeywords are statement heads that cannot modify warehouse state.
var readOnlyKeywords = map[string]bool{
	"SELECT":    true,
	"WITH":      true,
	"FROM":      true,
	"VALUES":    true,
	"TABLE":     true,
	"DESCRIBE":  true,
	"SHOW":      true,
	"SUMMARIZE": true,
	"EXPLAIN":   true,
}

// IsReadOnly reports whether stmt is a single statement whose leading keyword
// only reads data.
func IsReadOnly(stmt string) bool {
	stmts := Split(stmt)
	if len(stmts) != 1 {
		return false
	}
	return readOnlyKeywords[FirstKeyword(stmts[0])]
}
