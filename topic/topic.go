// Package topic implements the MQTT topic model: topic names (used on
// PUBLISH) and topic filters (used on SUBSCRIBE), with the wildcard
// matching predicate the engine needs to route a published message to its
// subscribers.
package topic

import "strings"

// Name is a validated topic name: a '/'-separated sequence of levels with
// no wildcard characters, used on PUBLISH.
type Name struct {
	raw string
}

// Filter is a validated topic filter: a '/'-separated sequence of levels
// where any level may be the single-level wildcard '+', and the last level
// may be the multi-level wildcard '#'.
type Filter struct {
	raw string
}

// ParseName validates topic as a topic name per MQTT v5 §4.7.
func ParseName(topic string) (Name, error) {
	if topic == "" {
		return Name{}, errEmpty
	}
	if strings.ContainsRune(topic, 0) {
		return Name{}, errNull
	}
	if strings.ContainsAny(topic, "+#") {
		return Name{}, errWildcardInName
	}
	return Name{raw: topic}, nil
}

// String returns the topic name's wire representation.
func (n Name) String() string { return n.raw }

// hasDollarPrefix reports whether the topic name begins with '$', i.e. it is
// not eligible for wildcard-prefixed filters (MQTT-4.7.2-1).
func (n Name) hasDollarPrefix() bool { return strings.HasPrefix(n.raw, "$") }

// ParseFilter validates topic as a topic filter per MQTT v5 §4.7.
//
// '#' is only valid as an entire final level ("a/#", not "a/b#" or "a/#/c").
// '+' is only valid as an entire level ("a/+/c", not "a/b+").
func ParseFilter(filter string) (Filter, error) {
	if filter == "" {
		return Filter{}, errEmpty
	}
	if strings.ContainsRune(filter, 0) {
		return Filter{}, errNull
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.ContainsRune(level, '#') {
			if level != "#" {
				return Filter{}, errMalformedWildcard
			}
			if i != len(levels)-1 {
				return Filter{}, errMultiLevelNotLast
			}
		}
		if strings.ContainsRune(level, '+') && level != "+" {
			return Filter{}, errMalformedWildcard
		}
	}

	return Filter{raw: filter}, nil
}

// String returns the topic filter's wire representation.
func (f Filter) String() string { return f.raw }

// HasWildcard reports whether the filter contains '+' or '#' anywhere.
func (f Filter) HasWildcard() bool {
	return strings.ContainsAny(f.raw, "+#")
}

// HasSharedPrefix reports whether the filter is a shared subscription
// filter of the form "$share/<group>/<filter>" (MQTT v5 §4.8.2).
func (f Filter) HasSharedPrefix() bool {
	return strings.HasPrefix(f.raw, "$share/")
}

// Matches reports whether name is matched by filter, per MQTT v5 §4.7.1.
//
// Per MQTT-4.7.2-1, a filter whose first level is a wildcard ('+' or '#')
// never matches a name whose first level begins with '$'.
func Matches(filter Filter, name Name) bool {
	if name.hasDollarPrefix() {
		firstFilterLevel := filter.raw
		if idx := strings.IndexByte(filter.raw, '/'); idx >= 0 {
			firstFilterLevel = filter.raw[:idx]
		}
		if firstFilterLevel == "+" || firstFilterLevel == "#" {
			return false
		}
	}

	fLevels := strings.Split(filter.raw, "/")
	tLevels := strings.Split(name.raw, "/")

	for i, fLevel := range fLevels {
		if fLevel == "#" {
			return true
		}

		if i >= len(tLevels) {
			return false
		}

		if fLevel != "+" && fLevel != tLevels[i] {
			return false
		}
	}

	return len(fLevels) == len(tLevels)
}

var (
	errEmpty             = topicError("topic must not be empty")
	errNull              = topicError("topic must not contain a null character")
	errWildcardInName    = topicError("topic name must not contain '+' or '#'")
	errMalformedWildcard = topicError("wildcard character must occupy an entire topic level")
	errMultiLevelNotLast = topicError("'#' must be the last level of a topic filter")
)

// topicError is a plain sentinel-style error; topic validation failures
// are never retried or branched on by type, only surfaced to the caller.
type topicError string

func (e topicError) Error() string { return string(e) }
