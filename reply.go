// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package slab

import (
	"code.hybscloud.com/iox"
)

// Reply is the closed set of failure outcomes a pool operation can
// produce. A nil error means the operation succeeded; every non-nil
// error returned by this package is a Reply value, so callers can
// switch on the exact outcome without unwrapping.
//
// Two replies are expected control flow rather than failures:
// NotFound at a pool boundary routes a foreign pointer to the
// supplementary allocator, and RangeFail at the size-class boundary
// routes an oversized request there.
type Reply uint8

const (
	// Insane indicates a branch claimed unreachable was reached.
	// It is never returned; code that detects this condition panics.
	Insane Reply = iota + 1

	// CrtFail indicates a runtime-library level failure.
	CrtFail

	// APIFail indicates a foreign API returned a failure code.
	APIFail

	// Disallowed indicates a specific, disallowed argument value,
	// such as a nil pointer or a zero size.
	Disallowed

	// RangeFail indicates a value outside its permitted range, such
	// as a size no pooled class can satisfy.
	RangeFail

	// ResourceFail indicates the operating system refused a resource.
	ResourceFail

	// NotFound indicates a search failed; at the pool boundary it
	// means the queried address is not owned by the pool.
	NotFound

	// Unsupported indicates the request cannot be served on this
	// platform or configuration.
	Unsupported

	// Inconsistent indicates a complex state precondition was not
	// met, such as use before initialization.
	Inconsistent

	// Again indicates the action should be performed again.
	Again

	// Corrupt indicates a data structure failed a runtime check.
	Corrupt

	// Underflow indicates an accumulator fell below its minimum.
	Underflow

	// Overflow indicates an accumulator exceeded its maximum.
	Overflow

	// InputFail indicates a user-input related problem.
	InputFail
)

var replyNames = map[Reply]string{
	Insane:       "insane",
	CrtFail:      "crt failure",
	APIFail:      "api failure",
	Disallowed:   "disallowed argument",
	RangeFail:    "out of range",
	ResourceFail: "resource failure",
	NotFound:     "not found",
	Unsupported:  "unsupported",
	Inconsistent: "inconsistent state",
	Again:        "try again",
	Corrupt:      "corrupt",
	Underflow:    "underflow",
	Overflow:     "overflow",
	InputFail:    "input failure",
}

// Error implements the error interface.
func (r Reply) Error() string {
	if s, ok := replyNames[r]; ok {
		return "slab: " + s
	}
	return "slab: unknown reply"
}

// Is reports whether target matches this reply. Again additionally
// matches iox.ErrWouldBlock, so callers written against the iox
// non-blocking conventions can test replies with errors.Is.
func (r Reply) Is(target error) bool {
	if t, ok := target.(Reply); ok {
		return t == r
	}
	return r == Again && target == iox.ErrWouldBlock
}

// Reporter receives replies the façade considers unexpected, before
// they are returned to the caller. It is injected at Initialize time;
// the zero value (nil) disables reporting.
type Reporter func(op string, err error)
