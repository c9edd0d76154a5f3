package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// AppendVLQInt appends v in Klipper's VLQ encoding: 7 bits per byte, most
// significant group first, with a continuation bit. The first group is sign
// extended by the decoder, so values in [-32, 96) fit in one byte.
func AppendVLQInt(dst []byte, v int32) []byte {
	for shift := uint(28); shift > 0; shift -= 7 {
		lim := int32(1) << (shift - 2)
		if v < -lim || v >= 3*lim {
			dst = append(dst, byte(v>>shift)&0x7F|0x80)
		}
	}
	return append(dst, byte(v)&0x7F)
}

// EncodeVLQInt writes a signed integer to output.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [5]byte
	output.Output(AppendVLQInt(buf[:0], v))
}

// EncodeVLQUint writes an unsigned integer to output.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// EncodeVLQBool writes a flag as 0 or 1.
func EncodeVLQBool(output OutputBuffer, v bool) {
	if v {
		EncodeVLQInt(output, 1)
	} else {
		EncodeVLQInt(output, 0)
	}
}

// DecodeVLQInt decodes a signed integer and advances data past it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}
	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for ; c&0x80 != 0; i++ {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i >= 5 {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[i])
		v = v<<7 | c&0x7F
	}
	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes an unsigned integer and advances data past it.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// DecodeVLQBool decodes a flag; any nonzero value is true.
func DecodeVLQBool(data *[]byte) (bool, error) {
	v, err := DecodeVLQInt(data)
	return v != 0, err
}

// EncodeVLQBytes writes a length-prefixed byte string.
func EncodeVLQBytes(output OutputBuffer, b []byte) {
	EncodeVLQUint(output, uint32(len(b)))
	output.Output(b)
}

// DecodeVLQBytes decodes a length-prefixed byte string. The result aliases
// data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrBufferTooSmall
	}
	b := (*data)[:n]
	*data = (*data)[n:]
	return b, nil
}
