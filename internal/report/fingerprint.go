package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ComputeFingerprint derives a grouping key from the exception chain, or
// from the message for events without one. Events with the same cause
// share a fingerprint regardless of ids, timestamps or extra data.
func (e *Event) ComputeFingerprint() string {
	fields := make([]string, 0, 2*len(e.Exception)+1)
	for _, ex := range e.Exception {
		fields = append(fields, ex.Type, ex.Value)
	}
	if len(fields) == 0 {
		fields = append(fields, string(e.Level), e.Message)
	}
	return hashFields(fields...)
}

// hashFields hashes fields in order, length-prefixed so that no two field
// lists produce the same input.
func hashFields(fields ...string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
