// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ConfigurationError means the client cannot make requests at all, for
// example because the API key is missing.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// ErrorKind categorizes provider failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransport
	KindStatus
	KindMalformed
	KindRemote
	KindIncomplete
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	case KindRemote:
		return "remote"
	case KindIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// ProviderError reports a failed or aborted request to the model provider.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Provider != "" {
		return e.Provider + ": " + msg
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// errIncomplete is the ProviderError for a stream that ended without its
// final chunk.
func errIncomplete(provider string) error {
	return &ProviderError{Provider: provider, Kind: KindIncomplete, Message: "stream ended before the reply was complete"}
}

func missingKeyError(setting string) error {
	return &ConfigurationError{
		Setting: setting,
		Message: fmt.Sprintf("API key is not configured; set %s or GEMINI_API_KEY", setting),
	}
}

// IsConfigurationError reports whether err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsProviderError reports whether err is or wraps a *ProviderError.
func IsProviderError(err error) bool {
	var provErr *ProviderError
	return errors.As(err, &provErr)
}
