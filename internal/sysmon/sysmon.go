// Package sysmon samples resource usage of the running process so that
// decode commands can report what a run cost.
package sysmon

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is one sample of the current process.
type Stats struct {
	Taken      time.Time
	RSSMB      float64 // resident set size in MB
	CPUUser    float64 // seconds
	CPUSystem  float64 // seconds
	NumThreads int32
	IOReadMB   float64 // cumulative
	IOWriteMB  float64 // cumulative
}

// Usage is the difference between two samples.
type Usage struct {
	Wall       time.Duration
	CPUUser    float64
	CPUSystem  float64
	RSSMB      float64 // at the later sample
	RSSDeltaMB float64
	IOReadMB   float64
	IOWriteMB  float64
	NumThreads int32
}

// Snapshot samples the current process.
func Snapshot() (*Stats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}
	return sample(p), nil
}

// sample reads what the platform exposes; missing metrics stay zero.
func sample(p *process.Process) *Stats {
	s := &Stats{Taken: time.Now()}

	if memInfo, err := p.MemoryInfo(); err == nil {
		s.RSSMB = float64(memInfo.RSS) / 1024 / 1024
	}

	if cpuTimes, err := p.Times(); err == nil {
		s.CPUUser = cpuTimes.User
		s.CPUSystem = cpuTimes.System
	}

	if numThreads, err := p.NumThreads(); err == nil {
		s.NumThreads = numThreads
	}

	// Not available on every platform
	if ioCounters, err := p.IOCounters(); err == nil {
		s.IOReadMB = float64(ioCounters.ReadBytes) / 1024 / 1024
		s.IOWriteMB = float64(ioCounters.WriteBytes) / 1024 / 1024
	}

	return s
}

// Delta returns the resources used between before and after.
func Delta(before, after *Stats) Usage {
	return Usage{
		Wall:       after.Taken.Sub(before.Taken),
		CPUUser:    after.CPUUser - before.CPUUser,
		CPUSystem:  after.CPUSystem - before.CPUSystem,
		RSSMB:      after.RSSMB,
		RSSDeltaMB: after.RSSMB - before.RSSMB,
		IOReadMB:   after.IOReadMB - before.IOReadMB,
		IOWriteMB:  after.IOWriteMB - before.IOWriteMB,
		NumThreads: after.NumThreads,
	}
}

func (u Usage) String() string {
	return fmt.Sprintf("wall=%s user=%.3fs sys=%.3fs rss=%.1fMB (%+.1fMB) read=%.1fMB write=%.1fMB threads=%d",
		u.Wall.Round(time.Millisecond), u.CPUUser, u.CPUSystem, u.RSSMB, u.RSSDeltaMB, u.IOReadMB, u.IOWriteMB, u.NumThreads)
}
