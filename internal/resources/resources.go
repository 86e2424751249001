// Package resources answers "how many concurrent provers can this host
// support", by reading logical core count and available memory from the
// host and applying a conservative sizing formula.
package resources

import (
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// PerWorkerMemory is the memory budget reserved per concurrent prover.
const PerWorkerMemory uint64 = 4 * 1024 * 1024 * 1024 // 4 GiB

// ErrInsufficientResources is returned when the host cannot support even a
// single worker under the memory ceiling.
var ErrInsufficientResources = errors.New("insufficient resources: host cannot support a single prover worker")

// Oracle queries host capacity. The zero value is ready to use.
type Oracle struct{}

// LogicalCores returns the number of logical CPUs visible to the process.
func (Oracle) LogicalCores() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// AvailableMemoryBytes reads /proc/meminfo's MemAvailable on Linux. On
// platforms without that file (or if parsing fails) it falls back to a
// conservative assumption of 4 GiB available so sizing still proceeds.
func (Oracle) AvailableMemoryBytes() uint64 {
	b, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return PerWorkerMemory
	}
	for _, line := range strings.Split(string(b), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] != "MemAvailable:" {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			break
		}
		return kb * 1024
	}
	return PerWorkerMemory
}

// RecommendWorkers implements the ceiling-at-each-step sizing algorithm:
//
//  1. default = max(1, floor(cores/2))
//  2. cap     = max(1, floor(cores*3/4))
//  3. memCap  = floor(availableMemory/PerWorkerMemory) (no max(1, ...) floor)
//  4. return min(userRequest ?? default, cap, memCap)
//
// userRequest of 0 means "no preference". Returns ErrInsufficientResources
// when memCap is zero, i.e. less than PerWorkerMemory is available.
func (o Oracle) RecommendWorkers(userRequest int) (int, error) {
	cores := o.LogicalCores()
	available := o.AvailableMemoryBytes()

	def := maxInt(1, cores/2)
	cap_ := maxInt(1, cores*3/4)
	memCapRaw := int(available / PerWorkerMemory)
	if memCapRaw < 1 {
		return 0, ErrInsufficientResources
	}

	want := def
	if userRequest > 0 {
		want = userRequest
	}

	result := minInt(want, cap_, memCapRaw)
	if result < 1 {
		return 0, ErrInsufficientResources
	}
	return result, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
