package schedule

// CapacityFor returns the number of slots for a run: one fewer than base when
// the trend is high, never below zero.
func CapacityFor(base int, trendHigh bool) int {
	capacity := base
	if trendHigh {
		capacity--
	}
	if capacity < 0 {
		return 0
	}
	return capacity
}

// SlotFor maps a 1-based deadline onto the 0-based index of the latest slot the
// item may occupy. Deadlines past the horizon clamp to the last slot. Returns -1
// when no slot can hold the item.
func SlotFor(deadline, capacity int) int {
	if capacity <= 0 || deadline < 1 {
		return -1
	}
	return min(deadline, capacity) - 1
}
