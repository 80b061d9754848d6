// Package flow implements the credit-based flow control core shared by
// every transport in this module: how much a connection is allowed to
// pull from the broker at once, and how that allowance is shared,
// shrunk, and recovered across every connection subscribed to one
// reader.
//
// Two types do the work. ConnectionRdy tracks a single connection's
// credit state machine (INIT/BACKOFF/ONE/MAX). ReaderRdy owns every
// ConnectionRdy for one reader and coordinates them through its own
// state machine (ZERO/TRY_ONE/MAX/BACKOFF), including the low-RDY
// regime that kicks in once there are more connections than spare
// credit to go around.
package flow
