// Package schedule selects which work items get the limited slots of a
// scheduling horizon.
//
// A run ranks valid items by value and places each one in the latest free slot
// at or before its deadline (classic job sequencing with deadlines). The
// number of slots shrinks by one when items created recently average above a
// revenue threshold, keeping headroom when large work is arriving.
//
// Compute is the pure algorithm. Service wraps it with the storage round trip:
// load every item, compute, and write every status back in one batch.
package schedule
