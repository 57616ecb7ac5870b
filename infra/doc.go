// Package infra holds the technical adapters behind the core ports: the
// Postgres store, MQTT and Redis notifiers, metrics exporters and the
// Sentry monitor. Subpackages depend only on interfaces from core.
package infra
