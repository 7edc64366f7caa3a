// Package notifications publishes pipeline events to ntfy.
//
// The service posts plain-text messages to the topic configured under
// [notifications] and degrades to a no-op when no topic is set. Each event
// kind can be switched off individually so a scheduled run only pings for the
// milestones the reader cares about. Publishing failures are returned to the
// caller, which logs them; they never fail an edition.
package notifications
