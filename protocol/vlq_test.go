package protocol

import (
	"bytes"
	"testing"
)

func TestVLQEncoding(t *testing.T) {
	testCases := []struct {
		value int32
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{1000, []byte{0x87, 0x68}},
		{-1000, []byte{0xF8, 0x18}},
		{2147483647, []byte{0x87, 0xFF, 0xFF, 0xFF, 0x7F}},
		{-2147483648, []byte{0xF8, 0x80, 0x80, 0x80, 0x00}},
	}

	for _, tc := range testCases {
		got := AppendVLQInt(nil, tc.value)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("AppendVLQInt(%d) = % x, want % x", tc.value, got, tc.want)
		}

		data := got
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("DecodeVLQInt(% x): %v", got, err)
			continue
		}
		if decoded != tc.value {
			t.Errorf("DecodeVLQInt(% x) = %d, want %d", got, decoded, tc.value)
		}
		if len(data) != 0 {
			t.Errorf("DecodeVLQInt(% x) left %d bytes", got, len(data))
		}
	}
}

func TestVLQUintRange(t *testing.T) {
	for _, v := range []uint32{0, 127, 128, 1 << 20, 3000000000, 0xFFFFFFFF} {
		output := NewScratchOutput()
		EncodeVLQUint(output, v)
		data := output.Result()
		got, err := DecodeVLQUint(&data)
		if err != nil || got != v {
			t.Errorf("uint %d: got %d, err %v", v, got, err)
		}
	}
}

func TestVLQSequence(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQInt(output, -5)
	EncodeVLQBool(output, true)
	EncodeVLQBytes(output, []byte("abc"))
	EncodeVLQUint(output, 600000)

	data := output.Result()
	if v, _ := DecodeVLQInt(&data); v != -5 {
		t.Errorf("first value = %d, want -5", v)
	}
	if v, _ := DecodeVLQBool(&data); !v {
		t.Error("flag decoded as false")
	}
	if b, err := DecodeVLQBytes(&data); err != nil || string(b) != "abc" {
		t.Errorf("bytes = %q, err %v", b, err)
	}
	if v, _ := DecodeVLQUint(&data); v != 600000 {
		t.Errorf("last value = %d, want 600000", v)
	}
	if len(data) != 0 {
		t.Errorf("%d bytes left over", len(data))
	}
}

func TestVLQDecodeErrors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrBufferTooSmall},
		{"truncated", []byte{0x87}, ErrBufferTooSmall},
		{"too long", []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}, ErrInvalidVLQ},
	}
	for _, tc := range testCases {
		data := tc.data
		if _, err := DecodeVLQInt(&data); err != tc.want {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if len(data) != len(tc.data) {
			t.Errorf("%s: data advanced on error", tc.name)
		}
	}

	data := []byte{0x05, 'a'}
	if _, err := DecodeVLQBytes(&data); err != ErrBufferTooSmall {
		t.Errorf("short byte string: err = %v", err)
	}
}
