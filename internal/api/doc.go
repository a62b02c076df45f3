// Package api exposes the HTTP surface: the public subscribe, unsubscribe,
// and contact endpoints, and the session-protected admin endpoints for
// subscriber and campaign management.
package api
