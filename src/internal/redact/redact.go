// FILE: logveil/src/internal/redact/redact.go
package redact

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"logveil/src/internal/core"

	"golang.org/x/crypto/blake2b"
)

// Redactor masks sensitive values in structured attributes. Matching is
// by key name only; matched values are masked whole and never recursed
// into, so the specificity of the outer key wins.
type Redactor struct {
	fieldNames []string
	patterns   []*regexp.Regexp
	maskRune   rune
	preserve   bool
	showFirst  int
	showLast   int
	hashValues bool
	hashKey    []byte
}

var fingerprintShape = regexp.MustCompile(`^fp:[0-9a-f]{16}$`)

// New compiles the policy's patterns together with the built-in set.
func New(policy Policy) (*Redactor, error) {
	r := &Redactor{
		maskRune:   core.DefaultMaskRune,
		preserve:   policy.PreserveLength,
		showFirst:  max(policy.ShowFirst, 0),
		showLast:   max(policy.ShowLast, 0),
		hashValues: policy.HashValues,
		hashKey:    policy.HashKey,
	}
	if policy.MaskCharacter != "" {
		r.maskRune = []rune(policy.MaskCharacter)[0]
	}
	if len(r.hashKey) > 64 {
		return nil, fmt.Errorf("hash key too long: %d bytes, max 64", len(r.hashKey))
	}

	for _, name := range policy.FieldNames {
		if name == "" {
			continue
		}
		r.fieldNames = append(r.fieldNames, strings.ToLower(name))
	}

	r.patterns = append(r.patterns, builtinRegexps...)
	for i, p := range policy.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pattern[%d] %q: %w", i, p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Redact returns a fresh attribute map with sensitive values masked.
// The input map is never mutated. Nil values pass through even under a
// matched key.
func (r *Redactor) Redact(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	return r.redactMap(attrs)
}

func (r *Redactor) redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = nil
			continue
		}
		if r.Matches(k) {
			out[k] = r.maskValue(v)
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			out[k] = r.redactMap(t)
		case []any:
			out[k] = r.redactSlice(t)
		default:
			out[k] = v
		}
	}
	return out
}

func (r *Redactor) redactSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		switch t := v.(type) {
		case map[string]any:
			out[i] = r.redactMap(t)
		case []any:
			out[i] = r.redactSlice(t)
		default:
			out[i] = v
		}
	}
	return out
}

// Matches reports whether a key name is considered sensitive.
func (r *Redactor) Matches(key string) bool {
	lower := strings.ToLower(key)
	for _, name := range r.fieldNames {
		if strings.Contains(lower, name) {
			return true
		}
	}
	for _, re := range r.patterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

func (r *Redactor) maskValue(v any) any {
	s := stringify(v)
	if r.hashValues {
		// Fingerprint tokens survive a second pass unchanged.
		if fingerprintShape.MatchString(s) {
			return s
		}
		return r.fingerprint(s)
	}
	return r.mask(s)
}

func (r *Redactor) mask(s string) string {
	if !r.preserve {
		return strings.Repeat(string(r.maskRune), core.FixedMaskWidth)
	}
	runes := []rune(s)
	n := len(runes)
	if n == 0 {
		return ""
	}
	if r.showFirst+r.showLast >= n {
		return strings.Repeat(string(r.maskRune), n)
	}
	var b strings.Builder
	b.Grow(n)
	b.WriteString(string(runes[:r.showFirst]))
	b.WriteString(strings.Repeat(string(r.maskRune), n-r.showFirst-r.showLast))
	b.WriteString(string(runes[n-r.showLast:]))
	return b.String()
}

func (r *Redactor) fingerprint(s string) string {
	h, _ := blake2b.New256(r.hashKey) // key length validated in New
	h.Write([]byte(s))
	sum := h.Sum(nil)
	return "fp:" + hex.EncodeToString(sum[:8])
}

// stringify renders a value for masking. Containers serialize to
// compact JSON so the mask covers the whole structure.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
