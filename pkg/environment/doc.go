// Package environment carries the deployment stage (development, staging,
// production) through request contexts and log records.
//
// The service parses APP_ENV once with Parse, binds it to every request with
// Middleware and uses it to pick the log format. Error responses only carry
// internal details outside production.
package environment
