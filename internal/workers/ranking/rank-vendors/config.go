// internal/workers/ranking/rank-vendors/config.go
package rankvendors

import "time"

type Config struct {
	Timeout       time.Duration
	MaxVendorLoad int
	AlertOnReview bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		MaxVendorLoad: 200,
		AlertOnReview: true,
	}
}
