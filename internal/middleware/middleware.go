// Package middleware holds the HTTP middleware shared by the relay's routes:
// request ids, request-scoped loggers, Prometheus metrics and security headers.
package middleware

type contextKey string
