package codec

import (
	"errors"
	"fmt"
	"io"
)

// wrapIOErr classifies a read error the way the engine needs to see it: EOF
// variants collapse to the sentinel UnexpectedEof, anything else is wrapped
// so callers can still unwrap down to the underlying net/os error.
func wrapIOErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrUnexpectedEOF
	}
	return fmt.Errorf("codec: %w", err)
}
