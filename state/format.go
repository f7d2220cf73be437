package state

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ls4154/chunklog/base"
	"github.com/ls4154/chunklog/util"
)

// Snapshot format, one per chunk:
//
//	magic(1B) | compression(1B) | masked crc32c(4B, little-endian) | body
//
// The checksum covers the compression byte and the stored body. Before
// compression, body is a uvarint entry count followed by length-prefixed
// key and value pairs in key order.
const (
	snapshotMagic      = 'S'
	snapshotHeaderSize = 1 + 1 + 4
)

func encodeSnapshot(entries map[string][]byte, compression base.CompressionType) []byte {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var body []byte
	body = binary.AppendUvarint(body, uint64(len(keys)))
	for _, k := range keys {
		body = util.AppendLengthPrefixedBytes(body, []byte(k))
		body = util.AppendLengthPrefixedBytes(body, entries[k])
	}
	if compression == base.SnappyCompression {
		body = util.SnappyCompress(body)
	}

	buf := make([]byte, snapshotHeaderSize, snapshotHeaderSize+len(body))
	buf[0] = snapshotMagic
	buf[1] = byte(compression)
	buf = append(buf, body...)

	h := util.NewCRC32C()
	h.Write(buf[1:2])
	h.Write(body)
	binary.LittleEndian.PutUint32(buf[2:], util.MaskCRC32(h.Sum32()))
	return buf
}

func decodeSnapshot(data []byte) (map[string][]byte, error) {
	if len(data) < snapshotHeaderSize {
		return nil, fmt.Errorf("%w: snapshot too short (%d bytes)", base.ErrCorruption, len(data))
	}
	if data[0] != snapshotMagic {
		return nil, fmt.Errorf("%w: bad snapshot magic %#x", base.ErrCorruption, data[0])
	}

	body := data[snapshotHeaderSize:]
	expectedCRC := util.UnmaskCRC32(binary.LittleEndian.Uint32(data[2:]))
	actualCRC := util.ExtendCRC32C(util.ChecksumCRC32C(data[1:2]), body)
	if expectedCRC != actualCRC {
		return nil, fmt.Errorf("%w: snapshot checksum mismatch", base.ErrCorruption)
	}

	switch base.CompressionType(data[1]) {
	case base.NoCompression:
	case base.SnappyCompression:
		var err error
		body, err = util.SnappyUncompress(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", base.ErrCorruption, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown compression type %d", base.ErrCorruption, data[1])
	}

	count, n := binary.Uvarint(body)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad entry count", base.ErrCorruption)
	}
	body = body[n:]

	entries := make(map[string][]byte)
	for i := uint64(0); i < count; i++ {
		key, n := util.GetLengthPrefixedBytes(body)
		if n == 0 {
			return nil, fmt.Errorf("%w: truncated key in entry %d", base.ErrCorruption, i)
		}
		body = body[n:]

		value, n := util.GetLengthPrefixedBytes(body)
		if n == 0 {
			return nil, fmt.Errorf("%w: truncated value in entry %d", base.ErrCorruption, i)
		}
		body = body[n:]

		entries[string(key)] = append([]byte{}, value...)
	}
	if len(body) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after entries", base.ErrCorruption, len(body))
	}
	return entries, nil
}
