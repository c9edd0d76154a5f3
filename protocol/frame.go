package protocol

import (
	"bytes"
	"sync/atomic"
)

// CRC16 calculates the CRC16-CCITT checksum used by the framing layer.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc & 0xFF)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// AppendFrame appends a complete frame (length, sequence, payload, CRC and
// sync byte) to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) []byte {
	start := len(dst)
	dst = append(dst, uint8(len(payload)+MessageLengthMin), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync)
}

// frameReader splits a byte stream into frames. After a framing error it
// drops bytes up to the next sync byte.
type frameReader struct {
	synced uint32 // atomic bool

	// checkDest rejects frames whose sequence byte lacks MessageDest.
	checkDest bool
	onResync  func()
}

func newFrameReader(checkDest bool) frameReader {
	return frameReader{synced: 1, checkDest: checkDest}
}

func (r *frameReader) Synced() bool {
	return atomic.LoadUint32(&r.synced) != 0
}

func (r *frameReader) setSynced(v bool) {
	if v {
		atomic.StoreUint32(&r.synced, 1)
	} else {
		atomic.StoreUint32(&r.synced, 0)
	}
}

// scan calls onFrame for each valid frame in data and returns the number of
// bytes consumed. An incomplete trailing frame is left unconsumed. The
// payload passed to onFrame aliases data.
func (r *frameReader) scan(data []byte, onFrame func(seq uint8, payload []byte)) int {
	total := len(data)
	for len(data) > 0 {
		if !r.Synced() {
			i := bytes.IndexByte(data, MessageValueSync)
			if i < 0 {
				data = data[len(data):]
				break
			}
			data = data[i+1:]
			r.setSynced(true)
			if r.onResync != nil {
				r.onResync()
			}
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		n := int(data[MessagePositionLen])
		if n < MessageLengthMin || n > MessageLengthMax {
			r.setSynced(false)
			continue
		}
		seq := data[MessagePositionSeq]
		if r.checkDest && seq&^MessageSeqMask != MessageDest {
			r.setSynced(false)
			continue
		}
		if len(data) < n {
			break
		}
		if data[n-MessageTrailerSync] != MessageValueSync {
			r.setSynced(false)
			continue
		}
		crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
		if crc != CRC16(data[:n-MessageTrailerSize]) {
			r.setSynced(false)
			continue
		}

		payload := data[MessageHeaderSize : n-MessageTrailerSize]
		data = data[n:]
		onFrame(seq, payload)
	}
	return total - len(data)
}
