package chrono

import "time"

var epoch = time.Now()

// fallbackNs — монотонное время процесса через time.Since.
func fallbackNs() int64 {
	return int64(time.Since(epoch))
}
