package normalize

import "strings"

// Marker strings stand in for values or conditions that are not expanded.
const (
	MarkerCircular      = "[Circular ~]"
	MarkerMaxProperties = "[MaxProperties ~]"
	MarkerUndefined     = "[undefined]"
	MarkerNaN           = "[NaN]"
	MarkerInfinity      = "[Infinity]"
	MarkerNegInfinity   = "[-Infinity]"
	MarkerDomain        = "[Domain]"
	MarkerDomainEmitter = "[DomainEmitter]"
	MarkerSynthetic     = "[SyntheticEvent]"
)

// ErrorKey is the single field of a result whose walk failed outright.
const ErrorKey = "ERROR"

const (
	nonSerializablePrefix = "**non-serializable** ("
	objectPrefix          = "[object "
)

// NonSerializable formats the marker for a value that could not be inspected.
func NonSerializable(message string) string {
	return nonSerializablePrefix + message + ")"
}

// IsNonSerializable reports whether s is a non-serializable marker.
func IsNonSerializable(s string) bool {
	return strings.HasPrefix(s, nonSerializablePrefix) && strings.HasSuffix(s, ")")
}

// Undefined marks an absent value, as opposed to nil which normalizes to null.
var Undefined any = undefined{}

type undefined struct{}

func (undefined) String() string { return "undefined" }
