// Package chunk implements a self-healing append-only log of opaque records.
//
// Log format
//
//	file    := chunk* [ garbage? BEGIN payload ]
//	chunk   := BEGIN payload END
//	BEGIN   := 16 fixed bytes
//	END     := 16 fixed bytes
//	payload := any byte sequence
//
// The writer frames every record between the two markers and does nothing
// else; it never repairs or truncates the file. All recovery happens in the
// reader: bytes before a BEGIN are skipped, a trailing BEGIN with no END is
// dropped, and when a chunk contains an embedded BEGIN only the bytes after
// the last one are kept. That last rule covers a writer that crashed right
// after emitting BEGIN and was then reopened on the same file:
//
//	BEGIN <crash leftovers> BEGIN <payload> END
//
// yields just <payload>.
//
// A payload containing the END pattern ends its chunk early. Payloads are
// expected never to produce either marker.
package chunk

import "bytes"

const DelimiterSize = 16

var (
	beginMarker = [DelimiterSize]byte{
		0x8d, 0x3f, 0xa1, 0x5c, 0xe2, 0x07, 0x9b, 0x64,
		0x1e, 0xd8, 0x73, 0xc5, 0x2a, 0xf0, 0x49, 0xb6,
	}
	endMarker = [DelimiterSize]byte{
		0x5a, 0xc7, 0x12, 0x8e, 0x6d, 0xf3, 0x30, 0xa9,
		0xbc, 0x04, 0x97, 0x7b, 0xe5, 0x21, 0xd6, 0x4f,
	}
)

// BeginMarker returns a copy of the chunk start delimiter.
func BeginMarker() []byte {
	b := beginMarker
	return b[:]
}

// EndMarker returns a copy of the chunk end delimiter.
func EndMarker() []byte {
	b := endMarker
	return b[:]
}

// ContainsDelimiter reports whether p holds either marker. Such a payload
// would not read back intact.
func ContainsDelimiter(p []byte) bool {
	return bytes.Contains(p, beginMarker[:]) || bytes.Contains(p, endMarker[:])
}
