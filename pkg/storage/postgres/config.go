package postgres

// Config holds the settings the directory needs from PostgreSQL. Pool
// tuning beyond MaxConns keeps the pgxpool defaults.
type Config struct {
	DSN string

	// MaxConns caps the pool size (default: 25).
	MaxConns int32

	// MigrateOnStart applies the embedded schema at startup.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = 25
	}
}
