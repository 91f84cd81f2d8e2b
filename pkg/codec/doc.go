// Package codec implements the binary wire format of the model server.
//
// A message is a command or a response encoded as:
//
//	kind  uint16   stable tag of the variant
//	class uint8    1 = command, 2 = response
//	body  ...      variant fields as tagged values
//
// Every value starts with a one byte type tag followed by a fixed width
// big-endian body or a uint32 length/count prefix:
//
//	0x01 int64     8 bytes
//	0x02 float64   8 bytes, IEEE 754 bits
//	0x03 string    uint32 length + UTF-8 bytes
//	0x04 list      uint32 count + values
//	0x05 dist      uint32 count + (string, float64) pairs, keys sorted
//	0x06 bool      1 byte
//	0x07 labels    uint32 count + (string, string) pairs, keys sorted
//
// Encoding is deterministic, so the bytes of a command can serve as its
// cache fingerprint. Decoding rejects unknown tags, truncated input, and
// trailing bytes with a *DecodeError and never returns a partial value.
//
// Messages travel inside frames (see ReadFrame and WriteFrame) which carry
// the caller's credentials and optionally compress the payload with zstd.
package codec
