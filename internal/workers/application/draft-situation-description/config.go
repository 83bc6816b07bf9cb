package draftsituationdescription

import "time"

type Config struct {
	Timeout time.Duration
	// GenerationTimeout bounds one call to the model and must be shorter
	// than Timeout.
	GenerationTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           30 * time.Second,
		GenerationTimeout: 20 * time.Second,
	}
}
