package store

import (
	"fmt"
	"time"
)

// OrderNumber formats the human reference of the seq-th order of a day.
func OrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("CMD%s%04d", day.Format("20060102"), seq)
}
