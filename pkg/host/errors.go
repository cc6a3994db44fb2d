// Package host loads native plugin bundles and drives their lifecycle:
// discovery, module loading, instance creation, audio and event
// bridging, parameter management, and state persistence.
package host

import "errors"

var (
	// ErrNotFound means no bundle or class matched the request.
	ErrNotFound = errors.New("host: not found")

	// ErrInvalidBundle means the path is not a loadable plugin bundle.
	ErrInvalidBundle = errors.New("host: invalid bundle")

	// ErrFactoryUnavailable means the binary loaded but exposed no
	// usable factory entry point.
	ErrFactoryUnavailable = errors.New("host: factory unavailable")

	// ErrCreationFailed means the factory refused to instantiate the class.
	ErrCreationFailed = errors.New("host: component creation failed")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("host: instance already initialized")

	// ErrNotInitialized is returned when an operation requires an
	// initialized instance.
	ErrNotInitialized = errors.New("host: instance not initialized")

	// ErrNotActive is returned when processing is attempted on an
	// inactive instance.
	ErrNotActive = errors.New("host: instance not active")

	// ErrActivationFailed means the plugin rejected activation or
	// processing setup.
	ErrActivationFailed = errors.New("host: activation failed")

	// ErrBusLocked means a bus toggle was attempted while the instance
	// is active; the block layout is fixed at activation.
	ErrBusLocked = errors.New("host: bus layout locked while active")

	// ErrBlockTooLarge means a block exceeded the frame count agreed
	// at activation.
	ErrBlockTooLarge = errors.New("host: block exceeds configured maximum")

	// ErrChannelMismatch means the caller's buffers do not match the
	// instance's bus layout.
	ErrChannelMismatch = errors.New("host: channel layout mismatch")

	// ErrProcessFailed means the plugin's process call returned an error.
	ErrProcessFailed = errors.New("host: process call failed")

	// ErrParameterNotFound means no parameter has the given identifier.
	ErrParameterNotFound = errors.New("host: parameter not found")

	// ErrValueOutOfRange means a normalized value fell outside [0, 1].
	ErrValueOutOfRange = errors.New("host: normalized value out of range")

	// ErrReadOnlyParameter means the parameter cannot be written by
	// the host.
	ErrReadOnlyParameter = errors.New("host: parameter is read only")

	// ErrSnapshotFailed means the plugin could not serialize its state.
	ErrSnapshotFailed = errors.New("host: state snapshot failed")

	// ErrIdentityMismatch means a saved state blob belongs to a
	// different plugin class.
	ErrIdentityMismatch = errors.New("host: state identity mismatch")

	// ErrTerminated is returned for any operation on a torn-down instance.
	ErrTerminated = errors.New("host: instance terminated")
)
