package binlog

import "hash/crc32"

// Checksum computes the CRC32 (ISO 3309, polynomial 0xEDB88320, seed 0)
// an event carries little-endian in its last four bytes when the log has
// checksums enabled.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
