package rdbload

import "hash/crc64"

// EmptySnapshot is the fixed minimal valid snapshot a primary sends in
// response to PSYNC: header, no keys, straight to EOF, followed by its
// CRC64 checksum. This module never writes a populated snapshot (no
// BGSAVE equivalent); a fresh replica's state is whatever it replays
// afterward.
var EmptySnapshot = buildEmptySnapshot()

func buildEmptySnapshot() []byte {
	body := []byte("REDIS0011")
	body = append(body, opEOF)
	table := crc64.MakeTable(crc64.ECMA)
	sum := crc64.Checksum(body, table)
	checksum := make([]byte, 8)
	for i := 0; i < 8; i++ {
		checksum[i] = byte(sum >> (8 * i))
	}
	return append(body, checksum...)
}
