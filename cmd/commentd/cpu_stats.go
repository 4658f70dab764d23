package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// processSampler is the part of *process.Process the cpu log reads.
type processSampler interface {
	CPUPercent() (float64, error)
	MemoryInfo() (*process.MemoryInfoStat, error)
}

func logCPUUsage(ctx context.Context) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("cpu stats unavailable: %v", err)
		return
	}
	sampleProcess(ctx, proc, statsInterval, func(line string) { log.Print(line) })
}

// sampleProcess emits one line per interval until ctx ends. Failed samples
// are logged and skipped.
func sampleProcess(ctx context.Context, proc processSampler, every time.Duration, emit func(string)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			line, err := cpuLine(proc)
			if err != nil {
				log.Printf("cpu stats failed: %v", err)
				continue
			}
			emit(line)
		}
	}
}

func cpuLine(proc processSampler) (string, error) {
	percent, err := proc.CPUPercent()
	if err != nil {
		return "", err
	}
	var rss uint64
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	}
	return fmt.Sprintf("commentd cpu: %.1f%% rss=%dKiB", percent, rss/1024), nil
}
