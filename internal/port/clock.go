package port

import "time"

// Clock supplies "now" as a wall-clock reading in the market's location.
type Clock interface {
	Now() time.Time
}
