// Package format renders trip figures for history and live views.
package format

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Distance renders meters below one kilometer as whole meters and longer
// distances as kilometers with at most one decimal, e.g. "850 m", "1.2 km", "3 km".
func Distance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", meters)
	}
	km := math.Round(float64(meters)/100) / 10
	return strconv.FormatFloat(km, 'f', -1, 64) + " km"
}

// Elapsed renders a duration as MM:SS, or H:MM:SS once it reaches an hour.
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func Speed(mps float64) string {
	return fmt.Sprintf("%.2f m/s", mps)
}
