// FILE: logveil/src/internal/redact/policy.go
package redact

import "regexp"

// Policy configures which attribute keys count as sensitive and how
// their values are masked.
type Policy struct {
	// FieldNames match key names by case-insensitive substring.
	FieldNames []string `toml:"field_names"`
	// Patterns are extra regular expressions matched against key names.
	Patterns []string `toml:"patterns"`
	// MaskCharacter's first rune is used for masking. Default '*'.
	MaskCharacter string `toml:"mask_character"`
	// PreserveLength keeps the masked value the same length as the
	// original. When false a fixed 3-character mask is emitted.
	PreserveLength bool `toml:"preserve_length"`
	ShowFirst      int  `toml:"show_first"`
	ShowLast       int  `toml:"show_last"`
	// HashValues replaces matched values with keyed fingerprints so
	// equal secrets can be correlated without being exposed.
	HashValues bool   `toml:"hash_values"`
	HashKey    []byte `toml:"-"`
}

// DefaultPolicy matches the documented configuration defaults.
func DefaultPolicy() Policy {
	return Policy{PreserveLength: true}
}

// Built-in key patterns, always active. Deliberately loose: matching by
// containment over-redacts, which is the safe failure mode.
var builtinPatterns = []string{
	`(?i)password`,
	`(?i)token`,
	`(?i)key`,
	`(?i)secret`,
	`(?i)auth`,
	`(?i)credential`,
	`(?i)ssn`,
	`(?i)credit[-_]?card`,
	`(?i)cvv`,
	`(?i)pin`,
	`(?i)email`,
	`(?i)phone`,
}

var builtinRegexps = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(builtinPatterns))
	for i, p := range builtinPatterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}()
