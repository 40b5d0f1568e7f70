package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// LanguageNeutral is the key DKAN uses for untranslated field values.
const LanguageNeutral = "und"

type stepKind int

const (
	stepKey stepKind = iota
	stepIndex
	stepLang
)

// PathStep is one hop into a nested remote document.
type PathStep struct {
	kind  stepKind
	key   string
	index int
}

// Key addresses a map entry.
func Key(k string) PathStep { return PathStep{kind: stepKey, key: k} }

// Index addresses a list element.
func Index(i int) PathStep { return PathStep{kind: stepIndex, index: i} }

// LangSlot addresses the language slot of a translatable field.
var LangSlot = PathStep{kind: stepLang}

func (s PathStep) String() string {
	switch s.kind {
	case stepIndex:
		return strconv.Itoa(s.index)
	case stepLang:
		return "*lang*"
	default:
		return s.key
	}
}

// Path is an ordered route into a remote document.
type Path []PathStep

// FieldItem returns the common node layout field.<lang>.<index>.key.
func FieldItem(field string, index int, key string) Path {
	return Path{Key(field), LangSlot, Index(index), Key(key)}
}

// FieldValue is FieldItem with index 0.
func FieldValue(field, key string) Path {
	return FieldItem(field, 0, key)
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Document is a decoded remote JSON document (package or node).
// Nested values are map[string]any, []any and scalars.
type Document map[string]any

// Lookup walks the path and returns the value found, if any.
// DKAN renders empty fields as [] rather than {}, which resolves as absent.
func (d Document) Lookup(path Path) (any, bool) {
	var cur any = map[string]any(d)
	for _, step := range path {
		switch step.kind {
		case stepKey, stepLang:
			m, ok := asMap(cur)
			if !ok {
				return nil, false
			}
			key := step.key
			if step.kind == stepLang {
				key = LanguageNeutral
			}
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			cur = v
		case stepIndex:
			list, ok := cur.([]any)
			if !ok || step.index < 0 || step.index >= len(list) {
				return nil, false
			}
			cur = list[step.index]
		}
	}
	return cur, cur != nil
}

// String returns the scalar at path as text, "" when absent.
func (d Document) String(path Path) string {
	v, ok := d.Lookup(path)
	if !ok {
		return ""
	}
	return ScalarString(v)
}

// Items returns the list stored at field.<lang>, nil when absent.
func (d Document) Items(field string) []any {
	v, ok := d.Lookup(Path{Key(field), LangSlot})
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	return list
}

// Set stores value at path, creating intermediate maps and lists.
func (d Document) Set(path Path, value any) {
	if len(path) == 0 {
		return
	}
	setIn(map[string]any(d), path, value)
}

func setIn(container any, path Path, value any) any {
	if len(path) == 0 {
		return value
	}
	step := path[0]
	switch step.kind {
	case stepIndex:
		list, _ := container.([]any)
		for len(list) <= step.index {
			list = append(list, nil)
		}
		list[step.index] = setIn(list[step.index], path[1:], value)
		return list
	default:
		m, ok := asMap(container)
		if !ok {
			m = make(map[string]any)
		}
		key := step.key
		if step.kind == stepLang {
			key = LanguageNeutral
		}
		m[key] = setIn(m[key], path[1:], value)
		return m
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

// ScalarString renders a decoded JSON scalar without float rounding.
// Identifiers arrive as strings, json.Number or float64 depending on the
// endpoint; all of them compare equal after this conversion.
func ScalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		if s {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// Wrap builds the DKAN field layout {"und": [item, ...]}.
func Wrap(items ...map[string]any) map[string]any {
	list := make([]any, len(items))
	for i, item := range items {
		list[i] = item
	}
	return map[string]any{LanguageNeutral: list}
}
