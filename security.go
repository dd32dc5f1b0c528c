package ferry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zoobzio/ferry/errors"
)

// maxCollectionName is the longest namespace component the server accepts.
const maxCollectionName = 255

// Ruleset is the field and collection name policy applied during extraction.
type Ruleset struct {
	// OperatorPrefixes are key prefixes reserved for query operators.
	OperatorPrefixes []string `yaml:"operator_prefixes"`

	// AllowedOperatorKeys are exact keys exempt from OperatorPrefixes,
	// e.g. the DBRef fields "$ref", "$id" and "$db".
	AllowedOperatorKeys []string `yaml:"allowed_operator_keys"`

	// RejectDottedKeys rejects keys containing '.'.
	RejectDottedKeys bool `yaml:"reject_dotted_keys"`
}

// DefaultRuleset reserves the "$" prefix.
func DefaultRuleset() Ruleset {
	return Ruleset{OperatorPrefixes: []string{"$"}}
}

// withDefaults returns r with the default operator prefixes when none were
// configured. Only an explicitly empty OperatorPrefixes disables the check.
func (r Ruleset) withDefaults() Ruleset {
	if r.OperatorPrefixes == nil {
		r.OperatorPrefixes = DefaultRuleset().OperatorPrefixes
	}
	return r
}

// CheckKey validates a document key. NUL is always rejected because keys
// are NUL-terminated on the wire.
func (r Ruleset) CheckKey(key string) error {
	if strings.IndexByte(key, 0) >= 0 {
		return errors.InvalidFieldName(key, "contains a NUL byte")
	}
	for _, p := range r.OperatorPrefixes {
		if strings.HasPrefix(key, p) && !slices.Contains(r.AllowedOperatorKeys, key) {
			return errors.InvalidFieldName(key, fmt.Sprintf("starts with reserved prefix %q", p))
		}
	}
	if r.RejectDottedKeys && strings.Contains(key, ".") {
		return errors.InvalidFieldName(key, `contains "."`)
	}
	return nil
}

// CheckCollection validates a collection name.
func (r Ruleset) CheckCollection(name string) error {
	switch {
	case name == "":
		return errors.InvalidCollectionName(name, "must not be empty")
	case len(name) > maxCollectionName:
		return errors.InvalidCollectionName(name, fmt.Sprintf("exceeds %d bytes", maxCollectionName))
	case strings.IndexByte(name, 0) >= 0:
		return errors.InvalidCollectionName(name, "contains a NUL byte")
	case strings.Contains(name, "$"):
		return errors.InvalidCollectionName(name, `contains "$"`)
	case strings.HasPrefix(name, "system."):
		return errors.InvalidCollectionName(name, `uses the reserved "system." prefix`)
	}
	return nil
}
