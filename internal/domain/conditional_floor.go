package domain

// ConditionalFloor tags a floor as a deferred target: a dropoff reserved at
// add_ride time but not yet a real stop in the route. Two ConditionalFloors
// for the same floor value are never the same reservation — each add_ride
// call mints its own tag, and Route tracks deletion by tag identity, not by
// floor value. Go's pointer equality gives this for free: every
// NewConditionalFloor call returns a distinct *ConditionalFloor, so the
// pointer itself is the identity.
type ConditionalFloor struct {
	floor Floor
}

// NewConditionalFloor mints a fresh, uniquely-identified reservation for floor.
func NewConditionalFloor(floor Floor) *ConditionalFloor {
	return &ConditionalFloor{floor: floor}
}

// Floor returns the floor this reservation targets.
func (c *ConditionalFloor) Floor() Floor {
	return c.floor
}

// Value returns the underlying floor as a plain int, the form strategies
// consume when walking route keys.
func (c *ConditionalFloor) Value() int {
	return c.floor.Value()
}
