package util

import (
	"encoding/binary"
)

func AppendLengthPrefixedBytes(dest, value []byte) []byte {
	dest = binary.AppendUvarint(dest, uint64(len(value)))
	dest = append(dest, value...)
	return dest
}

// GetLengthPrefixedBytes decodes one value written by
// AppendLengthPrefixedBytes and returns it with the number of bytes
// consumed, or (nil, 0) if input is malformed.
func GetLengthPrefixedBytes(input []byte) ([]byte, int) {
	length, n := binary.Uvarint(input)
	if n <= 0 {
		return nil, 0
	}
	if uint64(len(input)-n) < length {
		return nil, 0
	}
	return input[n : n+int(length)], n + int(length)
}

const MaskDelta = 0xa282ead8

func MaskCRC32(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + MaskDelta
}

func UnmaskCRC32(masked uint32) uint32 {
	rot := masked - MaskDelta
	return (rot >> 17) | (rot << 15)
}
