package internal

// Option is a functional option applied when the application starts.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig supplies the application configuration. Run fails without it.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
