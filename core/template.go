package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Template is a named body pattern used to stamp out posts. Key is the
// registry name; Name is the human-readable title.
type Template struct {
	Key          string      `json:"key" validate:"required"`
	Name         string      `json:"name" validate:"required"`
	Description  string      `json:"description"`
	Body         string      `json:"content_template" validate:"required"`
	Hashtags     []string    `json:"hashtags"`
	Mentions     []string    `json:"mentions"`
	Tone         string      `json:"tone" validate:"omitempty,oneof=professional casual formal friendly"`
	MaxLength    int         `json:"max_length" validate:"gte=0"`
	ContentType  ContentType `json:"post_type" validate:"required,oneof=text image video mixed"`
	IncludeLink  bool        `json:"include_link"`
	IncludeMedia bool        `json:"include_media"`
	Enabled      bool        `json:"enabled"`
}

// Placeholders lists the distinct placeholder names in the body, in order of
// first appearance. Scanning stops at an unclosed placeholder.
func (t *Template) Placeholders() []string {
	var names []string
	seen := map[string]bool{}
	_, _ = scanTemplate(t.Body, func(name string) (string, bool) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return "", true
	})
	return names
}

// Render substitutes {name} placeholders from vars. {{ and }} produce literal
// braces. A placeholder without a value is a validation error, as is a result
// longer than MaxLength runes when MaxLength is set.
func (t *Template) Render(vars map[string]string) (string, error) {
	out, err := scanTemplate(t.Body, func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	})
	if err != nil {
		return "", fmt.Errorf("template %s: %w", t.Key, err)
	}
	if t.MaxLength > 0 && utf8.RuneCountInString(out) > t.MaxLength {
		return "", fmt.Errorf("%w: template %s renders %d characters, max is %d",
			ErrValidation, t.Key, utf8.RuneCountInString(out), t.MaxLength)
	}
	return out, nil
}

func scanTemplate(body string, lookup func(name string) (string, bool)) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(body) && body[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(body[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed placeholder at offset %d", ErrValidation, i)
			}
			name := body[i+1 : i+1+end]
			if !validPlaceholder(name) {
				return "", fmt.Errorf("%w: invalid placeholder {%s}", ErrValidation, name)
			}
			v, ok := lookup(name)
			if !ok {
				return "", fmt.Errorf("%w: missing value for placeholder {%s}", ErrValidation, name)
			}
			sb.WriteString(v)
			i += end + 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func validPlaceholder(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
