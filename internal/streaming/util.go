package streaming

import "strconv"

func itoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
