package callback

import "hash/crc32"

// StringKey hashes with the same CRC-32 (IEEE, polynomial 0xedb88320)
// construction the reference hashtable hand-rolls a table for; Go's
// standard library already ships a verified implementation of it, so
// the table reaches for hash/crc32 instead of re-deriving the table.
var StringKey = KeyType[string]{
	Hash: func(key string) uint32 {
		return crc32.ChecksumIEEE([]byte(key))
	},
	Equal: func(a, b string) bool { return a == b },
}
