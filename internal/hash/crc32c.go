package hash

import (
	"hash"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 { return crc32.Checksum(data, castagnoli) }

// NewCRC32C returns a streaming CRC32C.
func NewCRC32C() hash.Hash32 { return crc32.New(castagnoli) }

// Update folds data into a running CRC32C.
func Update(crc uint32, data []byte) uint32 { return crc32.Update(crc, castagnoli, data) }
