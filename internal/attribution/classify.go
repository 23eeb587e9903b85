package attribution

import (
	"fmt"
	"time"
)

// Classify assigns a purchase timestamp to exactly one event instance:
// the first instance (ascending) whose end of day is not before the
// purchase. A purchase that postdates every generated instance clamps to
// the last one rather than being dropped, so a too-narrow window never
// orphans purchases.
//
// Classification is a pure function of (createdAt, instances); both the
// HTTP service and the aggregation job go through this single
// implementation.
func Classify(createdAt time.Time, instances []time.Time) (time.Time, error) {
	if len(instances) == 0 {
		return time.Time{}, fmt.Errorf("%w: no instances to classify against", ErrInvalidArgument)
	}

	for _, instance := range instances {
		endOfDay := DateOf(instance).AddDate(0, 0, 1)
		if createdAt.Before(endOfDay) {
			return instance, nil
		}
	}
	return instances[len(instances)-1], nil
}
