// Package clustererr defines the typed error taxonomy the wire protocol and
// session handlers use to classify failures (§7 of the sync-protocol design):
// protocol/version errors, resource-not-found, timeout, worker-reported sync
// errors, and payload-decode errors. Each carries a stable Code so it can be
// serialized to the peer instead of just a formatted message.
package clustererr

import (
	"errors"
	"fmt"
)

// Code is a stable, wire-safe identifier for an error kind.
type Code string

const (
	CodeClusterNameMismatch Code = "cluster_name_mismatch"
	CodeVersionMismatch     Code = "version_mismatch"
	CodeNotFound            Code = "not_found"
	CodeTimeout             Code = "timeout"
	CodeWorkerSyncError     Code = "worker_sync_error"
	CodePayloadDecode       Code = "payload_decode"
	CodeInfrastructure      Code = "infrastructure"
)

// ClusterError is the typed error shipped across the worker link. Message is
// for humans; Code is for callers that branch on error kind.
type ClusterError struct {
	Code    Code
	Message string
	err     error
}

func (e *ClusterError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ClusterError) Unwrap() error { return e.err }

// Is allows errors.Is(err, clustererr.ErrNotFound) style checks against the
// sentinel values below by comparing codes.
func (e *ClusterError) Is(target error) bool {
	var ce *ClusterError
	if errors.As(target, &ce) {
		return e.Code == ce.Code
	}
	return false
}

// Sentinel values for errors.Is comparisons; callers compare by code, not by
// pointer identity, via ClusterError.Is.
var (
	ErrNotFound        = &ClusterError{Code: CodeNotFound}
	ErrTimeout         = &ClusterError{Code: CodeTimeout}
	ErrWorkerSyncError = &ClusterError{Code: CodeWorkerSyncError}
	ErrPayloadDecode   = &ClusterError{Code: CodePayloadDecode}
)

// ErrClusterNameMismatch is returned when a worker's hello advertises a
// cluster name different from the master's configured cluster.
type ErrClusterNameMismatch struct {
	Expected string
	Got      string
}

func (e *ErrClusterNameMismatch) Error() string {
	return fmt.Sprintf("%s: worker cluster name %q does not match master cluster name %q", CodeClusterNameMismatch, e.Got, e.Expected)
}

// ErrVersionMismatch is returned when a worker's hello advertises a version
// different from the master's version.
type ErrVersionMismatch struct {
	Expected string
	Got      string
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("%s: worker version %q does not match master version %q", CodeVersionMismatch, e.Got, e.Expected)
}

// NotFound builds a resource-not-found ClusterError, e.g. an unknown
// request-id in dapi_res or an unknown forward target in dapi_fwd.
func NotFound(message string) error {
	return &ClusterError{Code: CodeNotFound, Message: message}
}

// Timeout builds a timeout ClusterError for an inbound artifact wait or a
// DAPI round-trip wait.
func Timeout(message string) error {
	return &ClusterError{Code: CodeTimeout, Message: message}
}

// WorkerSyncError builds a ClusterError for a worker-reported sync failure
// (syn_i_w_m_r).
func WorkerSyncError(message string) error {
	return &ClusterError{Code: CodeWorkerSyncError, Message: message}
}

// PayloadDecode builds a ClusterError for a missing received-string or
// malformed JSON payload (agent-info sync).
func PayloadDecode(message string, cause error) error {
	return &ClusterError{Code: CodePayloadDecode, Message: message, err: cause}
}

// Infrastructure wraps an unexpected error (I/O failure, etc.) into a
// generic ClusterError carrying the original message, per the propagation
// policy in §7: infrastructure errors are wrapped, not reclassified.
func Infrastructure(message string, cause error) error {
	return &ClusterError{Code: CodeInfrastructure, Message: message, err: cause}
}
