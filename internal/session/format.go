package session

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// FormatRemaining renders d as HH:MM:SS, floored to whole seconds and never negative.
func FormatRemaining(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// WeightShare is a question's share of the total weight truncated to two
// decimals, e.g. 33 of 100 is "0.33". A zero total yields "0".
//
// The ratio is taken before scaling, as the portal does, so the float error
// of weight/total carries through: 29 of 100 is "0.28".
func WeightShare(weight, total float64) string {
	if total <= 0 {
		return "0"
	}
	share := math.Floor((weight/total)*100) / 100
	return strconv.FormatFloat(share, 'f', -1, 64)
}
