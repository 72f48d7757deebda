// Package normalize turns arbitrary runtime values into bounded, acyclic,
// JSON-safe trees for error-report payloads.
//
// Normalization is one-way and lossy. Values of unknown shape are walked
// depth-first; anything that is not plain data (functions, channels, big
// integers, NaN, well-known singletons, foreign runtime values) is rendered
// as a short label, and structural expansion is bounded by a depth budget
// and a per-node property budget:
//
//	out := normalize.Normalize(value, normalize.WithDepth(3), normalize.WithMaxProperties(100))
//
// Cycles are broken with the "[Circular ~]" marker. Only ancestors of the
// node being expanded count as visited, so a value shared by two siblings
// is expanded twice while a true cycle is caught.
//
// NormalizeToSize additionally re-normalizes at smaller depths until the
// JSON encoding of the result fits a byte budget:
//
//	out := normalize.NormalizeToSize(value, normalize.WithMaxSize(100*1024))
//
// Mappings in the result are Fields, which keep the enumeration order of
// their source when encoded as JSON, CBOR or YAML: insertion order for
// goja objects, declaration order for structs and sorted keys for Go maps.
// Plain converts a result to Go maps when the order does not matter.
//
// Neither entry point panics or returns an error. Failures while
// inspecting a single value become "**non-serializable** (<message>)"
// markers; a failure escaping the walk replaces the whole result with
// {"ERROR": "**non-serializable** (<message>)"}.
//
// Classification of host-specific values is pluggable through Host. The
// default host understands Go values; package jsvalue adds goja values.
package normalize
