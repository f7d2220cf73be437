package util

import (
	"fmt"

	"github.com/golang/snappy"
)

// maxSnappyDecodedLen bounds allocations when decoding untrusted input.
const maxSnappyDecodedLen = 1 << 30

func SnappyCompress(input []byte) []byte {
	return snappy.Encode(nil, input)
}

func SnappyUncompress(input []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(input)
	if err != nil {
		return nil, err
	}
	if n > maxSnappyDecodedLen {
		return nil, fmt.Errorf("snappy: decoded length %d too large", n)
	}
	return snappy.Decode(nil, input)
}
