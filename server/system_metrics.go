package server

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/promanage/errors"
)

// hostMemory reads total and available memory of the host
func hostMemory() (*MemoryStatus, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get memory stats")
	}
	return &MemoryStatus{TotalBytes: v.Total, AvailableBytes: v.Available}, nil
}
