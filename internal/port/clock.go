package port

// Clock is the simulation time source. Time only moves forward.
type Clock interface {
	Now() int64
}
