// Package tinycompress writes zlib streams without a compressor. Data is
// packed into stored DEFLATE blocks, which any inflater reads, so the
// firmware can ship a zlib dictionary without pulling in compress/flate.
package tinycompress

import (
	"hash/adler32"
)

// maxStored is the largest payload of one stored DEFLATE block.
const maxStored = 0xFFFF

// ZlibEncoder reuses one output buffer across calls.
type ZlibEncoder struct {
	output []byte
}

// NewZlib creates an encoder whose buffer starts with room for bufferSize
// payload bytes.
func NewZlib(bufferSize int) *ZlibEncoder {
	return &ZlibEncoder{output: make([]byte, 0, StoredSize(bufferSize))}
}

// StoredSize is the zlib stream length for n payload bytes.
func StoredSize(n int) int {
	blocks := (n + maxStored - 1) / maxStored
	if blocks == 0 {
		blocks = 1
	}
	return 2 + 5*blocks + n + 4
}

// Compress returns input as a zlib stream. The result aliases the encoder's
// buffer and is valid until the next call.
func (z *ZlibEncoder) Compress(input []byte) []byte {
	out := z.output[:0]

	// CMF/FLG: deflate, 32K window, default level
	out = append(out, 0x78, 0x9C)

	rest := input
	for {
		n := len(rest)
		if n > maxStored {
			n = maxStored
		}
		final := byte(0)
		if n == len(rest) {
			final = 1
		}
		length := uint16(n)
		nlength := ^length
		out = append(out, final, byte(length), byte(length>>8), byte(nlength), byte(nlength>>8))
		out = append(out, rest[:n]...)
		rest = rest[n:]
		if final == 1 {
			break
		}
	}

	checksum := adler32.Checksum(input)
	out = append(out, byte(checksum>>24), byte(checksum>>16), byte(checksum>>8), byte(checksum))

	z.output = out
	return out
}
