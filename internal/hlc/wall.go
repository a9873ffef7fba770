package hlc

import "time"

func defaultWallMS() uint64 {
	return uint64(time.Now().UnixMilli())
}
