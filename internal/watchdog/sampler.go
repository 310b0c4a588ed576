package watchdog

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Sampler reads the host resource counters used for breach checks.
type Sampler interface {
	// TxBytes returns the transmitted-bytes counter of the named interface.
	TxBytes(iface string) (uint64, error)

	// CPUPercent returns the system-wide CPU utilization since the last call.
	CPUPercent() (float64, error)
}

// hostSampler implements Sampler against the local machine.
type hostSampler struct{}

func (hostSampler) TxBytes(iface string) (uint64, error) {
	stats, err := psnet.IOCounters(true)
	if err != nil {
		return 0, err
	}
	for _, s := range stats {
		if s.Name == iface {
			return s.BytesSent, nil
		}
	}
	return 0, fmt.Errorf("interface %q not found", iface)
}

func (hostSampler) CPUPercent() (float64, error) {
	vals, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, nil
	}
	return vals[0], nil
}
