package core

import "errors"

var (
	// ErrMissingDocument is returned when a path no longer exists at action time.
	ErrMissingDocument = errors.New("document not found")

	// ErrStaleMetadata is returned when synthesized metadata predates the
	// document's last modification.
	ErrStaleMetadata = errors.New("metadata is older than the document")

	// ErrAdapterParse is returned when container content cannot be parsed.
	ErrAdapterParse = errors.New("malformed container document")

	// ErrSafeQueryTimeout is returned when a consistent query cannot settle
	// pending actions before its deadline.
	ErrSafeQueryTimeout = errors.New("timed out waiting for pending backlink actions")

	// ErrInvariant is returned by Graph.Check when the forward and backward
	// indexes disagree.
	ErrInvariant = errors.New("link graph invariant violated")

	// ErrClosed is returned by operations on a closed Service.
	ErrClosed = errors.New("backlink service closed")
)
