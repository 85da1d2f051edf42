// Package middleware provides the HTTP middleware of the Atelier API.
//
// Global middleware (applied to every request, outermost first):
//
//   - Recovery, RequestID, Logger, CORS, Compress
//   - RateLimit: token bucket per user or client address
//   - Idempotency: replays POST/PATCH responses for a repeated Idempotency-Key
//   - Metrics: request counter and latency histogram by route pattern
//
// Per-route middleware:
//
//   - Auth / OptionalAuth: RS256 access token validation
//   - OrganizerAuth / AdminAuth: role claim checks
//
// Handlers read the caller with GetUserID, GetUserRole and GetClaims.
package middleware
