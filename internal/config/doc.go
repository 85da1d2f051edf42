// Package config loads and validates the Atelier API configuration.
//
// Values come from environment variables, parsed with caarlos0/env struct
// tags. A .env file in the working directory is loaded first when present.
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// Configuration groups:
//
//   - ServerConfig: port, environment, timeouts, CORS origins, log level
//   - DatabaseConfig: SurrealDB connection settings
//   - JWTConfig: RS256 key paths, issuer and token lifetime
//   - EmailConfig: transactional email provider
//   - RateLimitConfig: token bucket sizing
//   - JobsConfig: background processor intervals
//
// Validate reports every problem at once via errors.Join.
package config
