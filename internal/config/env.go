package config

import (
	"github.com/cockroachdb/errors"
)

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return errors.Newf("required environment variables not set: %v", missing)
	}
	if c.TaxRate >= 1 {
		return errors.Newf("TAX_RATE must be below 1, got %v", c.TaxRate)
	}
	return nil
}

// PaymentsLive reports whether card payments go to the real gateway.
func (c Config) PaymentsLive() bool {
	return c.StripeSecretKey != ""
}
