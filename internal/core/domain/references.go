package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseReferences parses reference text of the form
//
//	"Name A", "Name B" (123)
//
// Straight and typographic quotes are accepted. Blank text yields no
// references; any other text that does not follow the grammar fails with
// ErrMalformedReference.
func ParseReferences(raw string) ([]Reference, error) {
	sc := newRefScanner(raw)
	if sc.done() {
		return nil, nil
	}

	var refs []Reference
	for {
		name, err := sc.quoted(false)
		if err != nil {
			return nil, err
		}
		id := ""
		if sc.peek('(') {
			id, err = sc.simpleParen()
			if err != nil {
				return nil, err
			}
			if !isDigits(id) {
				return nil, sc.fail("id %q is not numeric", id)
			}
		}
		refs = append(refs, Reference{Name: name, ID: id})
		more, err := sc.separator()
		if err != nil {
			return nil, err
		}
		if !more {
			return refs, nil
		}
	}
}

// FormatReferences renders references in the form ParseReferences reads.
// Double quotes inside names become single quotes.
func FormatReferences(refs []Reference) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		name := strings.ReplaceAll(r.Name, `"`, `'`)
		if r.ID == "" {
			parts = append(parts, `"`+name+`"`)
			continue
		}
		parts = append(parts, fmt.Sprintf(`"%s" (%s)`, name, r.ID))
	}
	return strings.Join(parts, ", ")
}

// ParseRelated parses related-content text of the form
//
//	"Title A" (https://a.example/x), "Title B" (https://b.example)
//
// The url may itself contain parentheses and commas.
func ParseRelated(raw string) ([]RelatedLink, error) {
	sc := newRefScanner(raw)
	if sc.done() {
		return nil, nil
	}

	var links []RelatedLink
	for {
		title, err := sc.quoted(true)
		if err != nil {
			return nil, err
		}
		if !sc.peek('(') {
			return nil, sc.fail("expected (url) after %q", title)
		}
		url, err := sc.greedyParen()
		if err != nil {
			return nil, err
		}
		links = append(links, RelatedLink{Title: title, URL: url})
		more, err := sc.separator()
		if err != nil {
			return nil, err
		}
		if !more {
			return links, nil
		}
	}
}

// FormatRelated renders related links in the form ParseRelated reads.
func FormatRelated(links []RelatedLink) string {
	parts := make([]string, 0, len(links))
	for _, l := range links {
		title := strings.ReplaceAll(l.Title, `"`, `'`)
		parts = append(parts, fmt.Sprintf(`"%s" (%s)`, title, l.URL))
	}
	return strings.Join(parts, ", ")
}

type refScanner struct {
	raw string
	rs  []rune
	pos int
}

func newRefScanner(raw string) *refScanner {
	sc := &refScanner{raw: raw, rs: []rune(strings.TrimSpace(raw))}
	return sc
}

func (s *refScanner) fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrMalformedReference, fmt.Sprintf(format, args...), s.raw)
}

func (s *refScanner) skipSpace() {
	for s.pos < len(s.rs) && unicode.IsSpace(s.rs[s.pos]) {
		s.pos++
	}
}

func (s *refScanner) done() bool {
	s.skipSpace()
	return s.pos >= len(s.rs)
}

func (s *refScanner) peek(r rune) bool {
	s.skipSpace()
	return s.pos < len(s.rs) && s.rs[s.pos] == r
}

func isOpenQuote(r rune) bool {
	return r == '"' || r == '“' || r == '„'
}

func isCloseQuote(r rune) bool {
	return r == '"' || r == '”' || r == '“'
}

func (s *refScanner) quoted(allowEmpty bool) (string, error) {
	s.skipSpace()
	if s.pos >= len(s.rs) || !isOpenQuote(s.rs[s.pos]) {
		return "", s.fail("expected quoted name at position %d", s.pos)
	}
	s.pos++
	start := s.pos
	for s.pos < len(s.rs) && !isCloseQuote(s.rs[s.pos]) && !isOpenQuote(s.rs[s.pos]) {
		s.pos++
	}
	if s.pos >= len(s.rs) || !isCloseQuote(s.rs[s.pos]) {
		return "", s.fail("unterminated quote")
	}
	name := strings.TrimSpace(string(s.rs[start:s.pos]))
	s.pos++
	if name == "" && !allowEmpty {
		return "", s.fail("empty name")
	}
	return name, nil
}

// simpleParen reads "(...)" up to the first closing parenthesis.
func (s *refScanner) simpleParen() (string, error) {
	s.pos++
	start := s.pos
	for s.pos < len(s.rs) && s.rs[s.pos] != ')' {
		s.pos++
	}
	if s.pos >= len(s.rs) {
		return "", s.fail("unterminated parenthesis")
	}
	v := strings.TrimSpace(string(s.rs[start:s.pos]))
	s.pos++
	return v, nil
}

// greedyParen reads "(...)" up to the closing parenthesis that ends the
// entry: one followed by end of input or by a comma and the next quote.
func (s *refScanner) greedyParen() (string, error) {
	s.pos++
	start := s.pos
	for i := start; i < len(s.rs); i++ {
		if s.rs[i] != ')' || !s.endsEntry(i+1) {
			continue
		}
		v := strings.TrimSpace(string(s.rs[start:i]))
		s.pos = i + 1
		return v, nil
	}
	return "", s.fail("unterminated parenthesis")
}

func (s *refScanner) endsEntry(i int) bool {
	for i < len(s.rs) && unicode.IsSpace(s.rs[i]) {
		i++
	}
	if i >= len(s.rs) {
		return true
	}
	if s.rs[i] != ',' {
		return false
	}
	i++
	for i < len(s.rs) && unicode.IsSpace(s.rs[i]) {
		i++
	}
	return i < len(s.rs) && isOpenQuote(s.rs[i])
}

// separator consumes a comma between entries. It returns false at the end.
func (s *refScanner) separator() (bool, error) {
	if s.done() {
		return false, nil
	}
	if s.rs[s.pos] != ',' {
		return false, s.fail("unexpected %q at position %d", s.rs[s.pos], s.pos)
	}
	s.pos++
	if s.done() {
		return false, s.fail("trailing comma")
	}
	return true, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
