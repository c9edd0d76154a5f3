package core

// appendInt appends the decimal form of n. Firmware code builds debug
// strings with it instead of fmt.
func appendInt(dst []byte, n int64) []byte {
	if n < 0 {
		dst = append(dst, '-')
		return appendUint(dst, uint64(-n))
	}
	return appendUint(dst, uint64(n))
}

func appendUint(dst []byte, n uint64) []byte {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, buf[i:]...)
}

func itoa(n int) string {
	return string(appendInt(nil, int64(n)))
}

func utoa(n uint32) string {
	return string(appendUint(nil, uint64(n)))
}

// valueToString formats a dictionary constant.
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa(int(val))
	case int64:
		return string(appendInt(nil, val))
	case uint:
		return string(appendUint(nil, uint64(val)))
	case uint32:
		return utoa(val)
	case uint64:
		return string(appendUint(nil, val))
	}
	return ""
}
