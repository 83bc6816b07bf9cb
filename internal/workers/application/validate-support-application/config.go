package validatesupportapplication

import "time"

type Config struct {
	Timeout time.Duration
	// RejectInvalid throws APPLICATION_VALIDATION_FAILED instead of
	// completing with isValid=false.
	RejectInvalid bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       10 * time.Second,
		RejectInvalid: true,
	}
}
