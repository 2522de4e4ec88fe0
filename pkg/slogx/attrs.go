// Package slogx provides slog attribute helpers for the fields this module
// logs on nearly every message.
package slogx

import "log/slog"

// Error returns an attribute with key "error" and the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// RequestID returns an attribute carrying the correlation key of a
// sub-request or response.
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// Topic returns an attribute naming a broker topic.
func Topic(name string) slog.Attr {
	return slog.String("topic", name)
}
