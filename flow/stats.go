package flow

// ConnStats is a point-in-time snapshot of a single connection's credit
// bookkeeping, intended for logging and metrics collectors.
type ConnStats struct {
	ID          string
	State       string
	InFlight    int64
	MaxRDY      int64
	LastRdySent int64
}

// ReaderStats is a point-in-time snapshot of a ReaderRdy and everything it
// owns.
type ReaderStats struct {
	State       string
	MaxInFlight int64
	InFlight    int64
	ConnCount   int
	Connections []ConnStats
}
