// memory.go provides the default memory probe: resident-set size of the
// Chromium processes this service spawned, summed over the browser and
// its helper processes.
package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ChromiumMemory sums the RSS of every chromium/chrome descendant of
// this process. Chromium forks renderer and GPU helpers, so a single-PID
// reading would undercount real usage.
func ChromiumMemory() (uint64, error) {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("inspect own process: %w", err)
	}

	children, err := self.Children()
	if err != nil {
		return 0, fmt.Errorf("list child processes: %w", err)
	}

	var total uint64
	for _, child := range children {
		total += chromiumRSS(child)
	}
	return total, nil
}

// chromiumRSS returns the RSS of p plus its descendants when p looks
// like a Chromium process, zero otherwise. Probe errors on individual
// processes are ignored — a racing process exit is normal.
func chromiumRSS(p *process.Process) uint64 {
	name, err := p.Name()
	if err != nil || !strings.Contains(strings.ToLower(name), "chrom") {
		return 0
	}

	var total uint64
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		total += mem.RSS
	}
	if children, err := p.Children(); err == nil {
		for _, child := range children {
			total += chromiumRSS(child)
		}
	}
	return total
}
