package process

import (
	"sync"

	psprocess "github.com/shirou/gopsutil/v3/process"
)

// Usage is the resource consumption of a process.
type Usage struct {
	CPU    float64 // percent 0-100*ncpu
	Memory uint64  // resident memory in bytes
}

// usageSampler samples the usage of a process on request. If the
// process can't be inspected, the usage stays at zero.
type usageSampler struct {
	proc *psprocess.Process
	last Usage
	lock sync.Mutex
}

func newUsageSampler(pid int32) *usageSampler {
	u := &usageSampler{}

	proc, err := psprocess.NewProcess(pid)
	if err == nil {
		u.proc = proc
	}

	return u
}

// Sample reads the current usage and keeps it as the last known usage.
func (u *usageSampler) Sample() Usage {
	if u == nil {
		return Usage{}
	}

	u.lock.Lock()
	defer u.lock.Unlock()

	if u.proc == nil {
		return u.last
	}

	if cpu, err := u.proc.CPUPercent(); err == nil {
		u.last.CPU = cpu
	}

	if mem, err := u.proc.MemoryInfo(); err == nil && mem != nil && mem.RSS != 0 {
		u.last.Memory = mem.RSS
	}

	return u.last
}

// Last returns the last sampled usage.
func (u *usageSampler) Last() Usage {
	if u == nil {
		return Usage{}
	}

	u.lock.Lock()
	defer u.lock.Unlock()

	return u.last
}
