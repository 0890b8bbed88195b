// Copyright 2026 The mpmcq Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mpmcq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates Dequeue found no consumable element.
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry later (with backoff or yield), or stop once IsClosed reports true
// and the queue has drained.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrClosed is returned by Enqueue after Close has been observed.
// The element is dropped and its node returned to the pool; handling the
// rejected value is the caller's responsibility.
var ErrClosed = errors.New("mpmcq: queue closed")

// IsWouldBlock reports whether err indicates an empty queue.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsClosed reports whether err indicates a rejected enqueue on a closed
// queue.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// ErrClosed is semantic: it reports a state transition, not a fault.
func IsSemantic(err error) bool {
	return iox.IsSemantic(err) || errors.Is(err, ErrClosed)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil and ErrWouldBlock. Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
