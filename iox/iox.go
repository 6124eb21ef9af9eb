// Package iox closes resources on cleanup paths.
package iox

import (
	"errors"
	"io"
)

// DiscardClose closes c and drops the error. Nil closers are skipped.
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

// CloseFunc returns a cleanup function that closes c:
//
//	t.Cleanup(iox.CloseFunc(srv))
func CloseFunc(c io.Closer) func() {
	return func() { DiscardClose(c) }
}

// CloseAll closes every non-nil closer in order and joins their errors.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
