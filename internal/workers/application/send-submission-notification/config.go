package sendsubmissionnotification

import "time"

type Config struct {
	Timeout      time.Duration
	EmailEnabled bool
	SMSEnabled   bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		EmailEnabled: true,
	}
}
