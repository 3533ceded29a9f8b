package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.State.SealSecret)
	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)

	// Copy slices and pointers so callers cannot mutate the original through
	// the redacted copy.
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	if cfg.Strategy.Conversions != nil {
		n := *cfg.Strategy.Conversions
		out.Strategy.Conversions = &n
	}
	if cfg.Strategy.Products != nil {
		out.Strategy.Products = append([]ProductConfig(nil), cfg.Strategy.Products...)
	}
	if cfg.Strategy.Baskets != nil {
		out.Strategy.Baskets = make([]BasketConfig, len(cfg.Strategy.Baskets))
		for i, b := range cfg.Strategy.Baskets {
			b.Legs = append([]LegConfig(nil), b.Legs...)
			out.Strategy.Baskets[i] = b
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
