package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// RedactAction defines what happens to a matched snapshot field.
type RedactAction string

const (
	RedactRemove RedactAction = "remove"
	RedactHash   RedactAction = "hash"
	RedactMask   RedactAction = "mask"
)

// Redactor scrubs sensitive fields from snapshots, captured bodies and
// metadata before they are persisted. Field names match case-insensitively;
// patterns support "*suffix", "prefix*" and "*contains*".
type Redactor struct {
	rules    map[string]RedactAction
	patterns map[string]RedactAction
	allowed  map[string]bool
}

var defaultRedactRules = map[string]RedactAction{
	"password":      RedactRemove,
	"pass":          RedactRemove,
	"pwd":           RedactRemove,
	"secret":        RedactRemove,
	"token":         RedactRemove,
	"api_key":       RedactRemove,
	"apikey":        RedactRemove,
	"access_token":  RedactRemove,
	"refresh_token": RedactRemove,
	"private_key":   RedactRemove,
	"cvv":           RedactRemove,
	"cvc":           RedactRemove,
	"ssn":           RedactMask,
	"credit_card":   RedactMask,
	"card_number":   RedactMask,
	"phone":         RedactMask,
	"phone_number":  RedactMask,
	"date_of_birth": RedactHash,
	"dob":           RedactHash,
}

// RedactOption configures a Redactor.
type RedactOption func(*Redactor)

// WithRedactField adds or overrides a rule. Names containing "*" are patterns.
func WithRedactField(field string, action RedactAction) RedactOption {
	return func(r *Redactor) {
		field = strings.ToLower(field)
		if strings.Contains(field, "*") {
			r.patterns[field] = action
			return
		}
		r.rules[field] = action
	}
}

// WithAllowedField lets a field through even when a rule matches it.
func WithAllowedField(field string) RedactOption {
	return func(r *Redactor) {
		r.allowed[strings.ToLower(field)] = true
	}
}

// WithoutDefaultRules starts from an empty rule set.
func WithoutDefaultRules() RedactOption {
	return func(r *Redactor) {
		clear(r.rules)
	}
}

// NewRedactor creates a redactor preloaded with credential and PII rules.
func NewRedactor(opts ...RedactOption) *Redactor {
	r := &Redactor{
		rules:    make(map[string]RedactAction, len(defaultRedactRules)),
		patterns: make(map[string]RedactAction),
		allowed:  make(map[string]bool),
	}
	for k, v := range defaultRedactRules {
		r.rules[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Redact returns a scrubbed copy of values. Nested objects and arrays are
// walked. A nil map stays nil.
func (r *Redactor) Redact(values map[string]any) map[string]any {
	if r == nil || values == nil {
		return values
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		action, ok := r.match(strings.ToLower(key))
		if !ok {
			out[key] = r.walk(value)
			continue
		}
		switch action {
		case RedactRemove:
		case RedactHash:
			out[key] = hashValue(value)
		case RedactMask:
			out[key] = maskValue(value)
		default:
			out[key] = r.walk(value)
		}
	}
	return out
}

func (r *Redactor) walk(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return r.Redact(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = r.walk(item)
		}
		return out
	}
	return value
}

func (r *Redactor) match(key string) (RedactAction, bool) {
	if r.allowed[key] {
		return "", false
	}
	if action, ok := r.rules[key]; ok {
		return action, true
	}
	for pattern, action := range r.patterns {
		if matchesPattern(key, pattern) {
			return action, true
		}
	}
	return "", false
}

func matchesPattern(key, pattern string) bool {
	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		return strings.Contains(key, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(key, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(key, pattern[:len(pattern)-1])
	}
	return key == pattern
}

func hashValue(value any) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v", value)))
	return hex.EncodeToString(sum[:])
}

// maskValue keeps the first and last characters of longer values.
func maskValue(value any) string {
	str := fmt.Sprintf("%v", value)
	n := len(str)
	switch {
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return str[:1] + strings.Repeat("*", n-2) + str[n-1:]
	}
	return str[:2] + strings.Repeat("*", n-4) + str[n-2:]
}
