package kms

import "errors"

var (
	// ErrEBUSYRetriesExhausted is returned when an atomic commit kept
	// failing with EBUSY past the retry budget (§4.8, §7 "Transient kernel
	// errors").
	ErrEBUSYRetriesExhausted = errors.New("kms: atomic commit: EBUSY retries exhausted")

	// ErrNoResources is returned when a device reports zero CRTCs or
	// connectors.
	ErrNoResources = errors.New("kms: device reports no CRTCs or connectors")

	// ErrUnknownObject is returned when a property or object lookup misses.
	ErrUnknownObject = errors.New("kms: unknown object id")
)
