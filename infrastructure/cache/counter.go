package cache

import "strconv"

// Counters are stored as decimal strings so the memory and Redis backends
// share a representation.

func encodeCounter(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}

func decodeCounter(value []byte) int64 {
	v, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
