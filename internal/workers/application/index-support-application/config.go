package indexsupportapplication

import "time"

const DefaultIndex = "support-applications"

type Config struct {
	Timeout time.Duration
	Index   string
	// Refresh is passed through to the index API ("true", "wait_for" or "").
	Refresh string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		Index:   DefaultIndex,
	}
}
