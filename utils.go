package art

import "encoding/binary"

// encodeUint64Into encodes x into out in big endian. Unlike a plain
// binary.BigEndian.PutUint64, out may be shorter than 8 bytes, in which
// case only the low bytes of x are kept.
func encodeUint64Into(x uint64, out []byte) {
	if len(out) >= 8 && len(out)%8 == 0 {
		for i := 0; i < len(out); i += 8 {
			binary.BigEndian.PutUint64(out[i:i+8], 0)
		}
		binary.BigEndian.PutUint64(out[len(out)-8:], x)
		return
	}
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = byte(x)
		x >>= 8
	}
}

const arenaPageSize = 4096

// roundUpToPageSize rounds n up to the next multiple of arenaPageSize
// (a fixed 4096 bytes, not queried from the host); n <= 0 yields one
// page.
func roundUpToPageSize(n int) int {
	if n <= 0 {
		return arenaPageSize
	}
	if n%arenaPageSize == 0 {
		return n
	}
	return ((n / arenaPageSize) + 1) * arenaPageSize
}
