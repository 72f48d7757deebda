package normalize

import "github.com/bytedance/sonic"

// Size returns the UTF-8 byte length of the JSON encoding of value.
// HTML characters are not escaped, matching what goes on the wire.
func Size(value any) (int, error) {
	data, err := sonic.ConfigDefault.Marshal(value)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// NormalizeToSize normalizes value and, while the JSON encoding of the
// result exceeds the byte budget, retries at a strictly smaller depth.
// Depth never goes below zero: if even the depth-0 result is too large
// (one huge string leaf, say) that result is returned as is. A result the
// encoder cannot measure counts as oversized.
func (n *Normalizer) NormalizeToSize(value any) any {
	depth := n.opts.depth
	if !n.opts.depthSet {
		depth = DefaultSizeDepth
	}
	for {
		out := n.normalizeAt(value, depth)
		if depth <= 0 {
			return out
		}
		if size, err := Size(out); err == nil && size <= n.opts.maxSize {
			return out
		}
		// Depths beyond the result's height produce the same tree, so
		// skip straight below it.
		depth = min(depth, height(out)) - 1
	}
}

// height counts the container levels of a normalized tree.
func height(tree any) int {
	h := 0
	switch t := tree.(type) {
	case Fields:
		for _, e := range t {
			h = max(h, height(e.Value))
		}
		return h + 1
	case []any:
		for _, child := range t {
			h = max(h, height(child))
		}
		return h + 1
	}
	return 0
}
