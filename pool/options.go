package pool

// config holds the fields every variant's constructor can be configured
// with. It is unexported: clients only ever see Option and the With*
// constructors, so there is no way to pass a field this package doesn't
// recognize.
type config struct {
	initialPages uint32
}

func defaultConfig() config {
	return config{initialPages: 1}
}

// Option configures a SharedArena, Arena, or Pool constructor.
type Option func(*config)

// WithInitialPages sets how many pages the arena pre-allocates before the
// first Alloc. The default is 1. n == 0 is treated the same as 1: an arena
// with no pages at all would have to allocate one on its very first Alloc
// regardless, so there is no useful distinction to preserve.
func WithInitialPages(n uint32) Option {
	return func(c *config) {
		if n == 0 {
			n = 1
		}
		c.initialPages = n
	}
}

func applyOptions(opts []Option) config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
