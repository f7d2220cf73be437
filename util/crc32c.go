package util

import (
	"hash"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

func ChecksumCRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// ExtendCRC32C returns the checksum of the concatenation of the data that
// produced crc and data.
func ExtendCRC32C(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crc32cTable, data)
}
