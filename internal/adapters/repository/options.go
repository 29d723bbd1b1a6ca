package repository

// Option applies a configuration option to the TreapIndex.
type Option func(*TreapIndex)

// WithSeed fixes the treap priority source. Tests use it for
// reproducible tree shapes.
func WithSeed(seed uint64) Option {
	return func(s *TreapIndex) {
		s.seed = seed
	}
}
