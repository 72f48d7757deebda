package normalize

import "math"

// Infinite disables a depth or property budget.
const Infinite = math.MaxInt

const (
	// DefaultSizeDepth is the starting depth of NormalizeToSize.
	DefaultSizeDepth = 3
	// DefaultMaxSize is half of the 200 KiB payload ceiling of the
	// report transport.
	DefaultMaxSize = 100 * 1024
)

type options struct {
	depth         int
	depthSet      bool
	maxProperties int
	maxSize       int
	host          *Host
}

// Option configures a Normalizer.
type Option func(*options)

// WithDepth bounds structural expansion to depth levels. Negative values
// are treated as zero.
func WithDepth(depth int) Option {
	return func(o *options) {
		o.depth = max(depth, 0)
		o.depthSet = true
	}
}

// WithMaxProperties bounds the number of entries expanded per mapping or
// sequence. Negative values are treated as zero.
func WithMaxProperties(n int) Option {
	return func(o *options) {
		o.maxProperties = max(n, 0)
	}
}

// WithMaxSize sets the JSON byte budget of NormalizeToSize.
func WithMaxSize(bytes int) Option {
	return func(o *options) {
		o.maxSize = bytes
	}
}

// WithHost replaces the default Go-native host.
func WithHost(host *Host) Option {
	return func(o *options) {
		if host != nil {
			o.host = host
		}
	}
}

// Normalizer is a reusable normalization configuration. It holds no
// per-call state, so one Normalizer may serve concurrent callers.
type Normalizer struct {
	opts options
}

// New creates a Normalizer. Depth and property budgets default to Infinite
// for Normalize; NormalizeToSize starts at DefaultSizeDepth unless a depth
// is given.
func New(opts ...Option) *Normalizer {
	o := options{
		depth:         Infinite,
		maxProperties: Infinite,
		maxSize:       DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.host == nil {
		o.host = DefaultHost()
	}
	return &Normalizer{opts: o}
}

// With returns a copy of n with additional options applied.
func (n *Normalizer) With(opts ...Option) *Normalizer {
	o := n.opts
	for _, opt := range opts {
		opt(&o)
	}
	return &Normalizer{opts: o}
}

// Host returns the host used for classification.
func (n *Normalizer) Host() *Host {
	return n.opts.host
}

// Normalize returns a fresh JSON-safe tree for value. It never panics.
func (n *Normalizer) Normalize(value any) any {
	return n.normalizeAt(value, n.opts.depth)
}

func (n *Normalizer) normalizeAt(value any, depth int) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = Fields{{Key: ErrorKey, Value: NonSerializable(panicMessage(r))}}
		}
	}()
	w := newVisitor(n.opts.host, n.opts.maxProperties)
	return w.visit("", value, depth)
}

// Normalize normalizes value with a one-off Normalizer.
func Normalize(value any, opts ...Option) any {
	return New(opts...).Normalize(value)
}

// NormalizeToSize normalizes value with a one-off Normalizer and shrinks
// the result until it fits the configured byte budget.
func NormalizeToSize(value any, opts ...Option) any {
	return New(opts...).NormalizeToSize(value)
}
