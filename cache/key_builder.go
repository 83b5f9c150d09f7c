package cache

import (
	"strconv"
	"strings"
)

const (
	// KeySeparator defines the delimiter used between cache key segments.
	KeySeparator = ":"

	// AllSegment is the key segment used when a query carries no filter.
	AllSegment = "all"

	// FilterField names the filtered attribute inside a filter segment.
	FilterField = "name"
)

// KeyBuilder derives cache keys of the form "<namespace>:all" or
// "<namespace>:name=<lowercased filter>".
//
// Keys are built by concatenation, not hashing, so distinct queries cannot
// collide as long as the namespace does not contain the separator. Use
// Validate when accepting namespaces from configuration.
type KeyBuilder struct {
	Separator   string
	AllSegment  string
	FilterField string
}

// DefaultKeyBuilder returns the key builder compatible with existing deployed cache content.
func DefaultKeyBuilder() KeyBuilder {
	return KeyBuilder{
		Separator:   KeySeparator,
		AllSegment:  AllSegment,
		FilterField: FilterField,
	}
}

// BuildKey builds a key with the default key builder.
// An empty filter means "no filtering" and yields the same key as an absent one.
func BuildKey(namespace, filter string) string {
	return DefaultKeyBuilder().Build(namespace, filter)
}

// Build returns the cache key for namespace and filter. Filters are compared
// case-insensitively, using full Unicode lowercase mapping.
func (b KeyBuilder) Build(namespace, filter string) string {
	b = b.withDefaults()

	segment := b.AllSegment
	if filter != "" {
		segment = b.FilterField + "=" + lowerFull(filter)
	}

	return namespace + b.Separator + segment
}

// Validate checks that namespace can be used with this builder without
// risking key collisions.
func (b KeyBuilder) Validate(namespace string) error {
	b = b.withDefaults()

	if namespace == "" {
		return &KeyError{Namespace: namespace, Message: "namespace must not be empty"}
	}
	if strings.Contains(namespace, b.Separator) {
		return &KeyError{Namespace: namespace, Message: "namespace must not contain " + strconv.Quote(b.Separator)}
	}
	if strings.TrimSpace(namespace) != namespace {
		return &KeyError{Namespace: namespace, Message: "namespace must not have surrounding whitespace"}
	}
	return nil
}

func (b KeyBuilder) withDefaults() KeyBuilder {
	if b.Separator == "" {
		b.Separator = KeySeparator
	}
	if b.AllSegment == "" {
		b.AllSegment = AllSegment
	}
	if b.FilterField == "" {
		b.FilterField = FilterField
	}
	return b
}

// KeyError reports a namespace that cannot be used to build keys.
type KeyError struct {
	Namespace string
	Message   string
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return "cache key error for namespace " + strconv.Quote(e.Namespace) + ": " + e.Message
}
