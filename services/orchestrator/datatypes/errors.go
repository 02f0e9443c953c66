// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Error taxonomy shared by the orchestrator and its collaborator clients.
//
// Every class maps to exactly one scripted user-visible sentence at the
// orchestrator; collaborator error text never reaches the user. Each error is
// logged with the turn's correlation identifier.
package datatypes

import (
	"errors"
	"fmt"
)

// =============================================================================
// ValidationError
// =============================================================================

// ValidationError reports a malformed request. Surfaced as a 4xx response;
// the turn writes nothing to memory.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// IsValidationError checks whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// =============================================================================
// AuthoritativeNotFound
// =============================================================================

// AuthoritativeNotFoundError means an authoritative source answered with no
// matching rule or record. Rendered as a scripted not-found message and
// persisted; never falls through to retrieval.
type AuthoritativeNotFoundError struct {
	Source  string // fee_schedule, location_service, directory
	Message string
}

func (e *AuthoritativeNotFoundError) Error() string {
	return fmt.Sprintf("%s: no matching record: %s", e.Source, e.Message)
}

// IsAuthoritativeNotFound checks whether err is (or wraps) an
// AuthoritativeNotFoundError.
func IsAuthoritativeNotFound(err error) bool {
	var nf *AuthoritativeNotFoundError
	return errors.As(err, &nf)
}

// =============================================================================
// AuthoritativeError
// =============================================================================

// AuthoritativeError means an authoritative source returned an error or
// timed out. After one retry for idempotent reads the orchestrator surfaces
// a scripted apology; the turn is persisted and retrieval stays suppressed.
type AuthoritativeError struct {
	Source     string
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *AuthoritativeError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// IsAuthoritativeError checks whether err is (or wraps) an AuthoritativeError.
func IsAuthoritativeError(err error) bool {
	var ae *AuthoritativeError
	return errors.As(err, &ae)
}

// GetAuthoritativeError extracts the AuthoritativeError from an error chain,
// or nil when none is present.
func GetAuthoritativeError(err error) *AuthoritativeError {
	var ae *AuthoritativeError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// =============================================================================
// RetrievalError
// =============================================================================

// RetrievalError means the retrieval service or its cache failed. After one
// retry the orchestrator continues with an empty context block and tells the
// user knowledge sources are temporarily unavailable.
type RetrievalError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed (status %d): %s", e.StatusCode, e.Message)
}

// IsRetrievalError checks whether err is (or wraps) a RetrievalError.
func IsRetrievalError(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}

// IsRetryableRetrieval reports whether err is a RetrievalError marked
// retryable (transient upstream status or back-pressure timeout).
func IsRetryableRetrieval(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re) && re.Retryable
}

// =============================================================================
// GenerativeError
// =============================================================================

// GenerativeError means the generative client failed, possibly mid-stream.
// The orchestrator streams a scripted apology and persists whatever partial
// text was already produced.
type GenerativeError struct {
	Message   string
	Retryable bool
}

func (e *GenerativeError) Error() string {
	return fmt.Sprintf("generative stream failed: %s", e.Message)
}

// IsGenerativeError checks whether err is (or wraps) a GenerativeError.
func IsGenerativeError(err error) bool {
	var ge *GenerativeError
	return errors.As(err, &ge)
}

// =============================================================================
// PersistenceDegraded
// =============================================================================

// PersistenceDegradedError means the memory store failed and the in-memory
// fallback took over. The turn still completes.
type PersistenceDegradedError struct {
	Op      string // append, read
	Message string
}

func (e *PersistenceDegradedError) Error() string {
	return fmt.Sprintf("session memory degraded on %s: %s", e.Op, e.Message)
}

// IsPersistenceDegraded checks whether err is (or wraps) a
// PersistenceDegradedError.
func IsPersistenceDegraded(err error) bool {
	var pe *PersistenceDegradedError
	return errors.As(err, &pe)
}

// =============================================================================
// DisambiguationStoreError
// =============================================================================

// DisambiguationStoreError means reading or writing disambiguation state
// failed at the network store. The in-process fallback answers the immediate
// next turn; stale state then expires silently.
type DisambiguationStoreError struct {
	Op      string // get, put, delete
	Message string
}

func (e *DisambiguationStoreError) Error() string {
	return fmt.Sprintf("disambiguation store %s failed: %s", e.Op, e.Message)
}

// IsDisambiguationStoreError checks whether err is (or wraps) a
// DisambiguationStoreError.
func IsDisambiguationStoreError(err error) bool {
	var de *DisambiguationStoreError
	return errors.As(err, &de)
}
