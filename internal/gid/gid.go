// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gid identifies the calling goroutine. Go deliberately
// offers no thread-local storage; the goroutine id parsed from the
// runtime's own stack header is the stable per-goroutine key this
// module keys its registries on.
package gid

import "runtime"

// ID returns the runtime id of the calling goroutine.
func ID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// The header reads "goroutine 123 [running]:".
	const prefix = len("goroutine ")
	id := int64(0)
	for i := prefix; i < n; i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
