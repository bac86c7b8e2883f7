package process

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// PsutilQuerier implements Querier using gopsutil.
type PsutilQuerier struct{}

// Running counts processes whose name equals name.
func (PsutilQuerier) Running(name string) (int, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, fmt.Errorf("failed to get process list: %w", err)
	}

	count := 0
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if pname == name {
			count++
		}
	}
	return count, nil
}

var _ Querier = PsutilQuerier{}
