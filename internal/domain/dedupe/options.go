package dedupe

// Option configures the deduper returned by NewInMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps how many submission ids are remembered. Once full the
// oldest recorded id is forgotten. n <= 0 means effectively unbounded.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = n
	}
}
