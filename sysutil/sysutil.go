// Package sysutil provides process and cgroup introspection for the
// storage engine: resident memory, accumulated CPU time, and the memory and
// CPU ceilings imposed by the surrounding container. Readings come from
// procfs; cgroup limit files are resolved through the process's own cgroup
// membership. Absence of a limit is reported as ErrNoLimit, never as a
// failure, so callers can fall back to "unlimited".
package sysutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// ErrNoLimit indicates that no cgroup limit is configured for the resource.
var ErrNoLimit = errors.New("no cgroup limit configured")

const _defaultCgroupRoot = "/sys/fs/cgroup"

// Values above this are treated as "no limit" in cgroup v1, which reports
// unlimited memory as a page-rounded max int64.
const _v1Unlimited = uint64(1) << 60

// ProcessMemory returns the resident and virtual memory of the current
// process in bytes.
func ProcessMemory() (resident uint64, virtual uint64, err error) {
	p, err := procfs.Self()
	if err != nil {
		return 0, 0, fmt.Errorf("open /proc/self: %w", err)
	}
	stat, err := p.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("read process stat: %w", err)
	}
	return uint64(stat.ResidentMemory()), uint64(stat.VirtualMemory()), nil
}

// ProcessCPUSeconds returns the total user+system CPU time consumed by the
// current process, in seconds.
func ProcessCPUSeconds() (float64, error) {
	p, err := procfs.Self()
	if err != nil {
		return 0, fmt.Errorf("open /proc/self: %w", err)
	}
	stat, err := p.Stat()
	if err != nil {
		return 0, fmt.Errorf("read process stat: %w", err)
	}
	return stat.CPUTime(), nil
}

// TotalMemory returns the machine's total physical memory in bytes.
func TotalMemory() (uint64, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return 0, fmt.Errorf("open /proc: %w", err)
	}
	mi, err := fs.Meminfo()
	if err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	if mi.MemTotal == nil {
		return 0, errors.New("meminfo missing MemTotal")
	}
	return *mi.MemTotal * 1024, nil
}

// cgroupPaths resolves the current process's cgroup paths: the v2 unified
// path (empty when not on v2) and the v1 per-controller paths.
func cgroupPaths() (v2Path string, v1Paths map[string]string, err error) {
	p, err := procfs.Self()
	if err != nil {
		return "", nil, fmt.Errorf("open /proc/self: %w", err)
	}
	cgroups, err := p.Cgroups()
	if err != nil {
		return "", nil, fmt.Errorf("read process cgroups: %w", err)
	}

	v1Paths = make(map[string]string)
	for _, cg := range cgroups {
		if cg.HierarchyID == 0 {
			// cgroup v2 unified hierarchy.
			v2Path = cg.Path
			continue
		}
		for _, ctrl := range cg.Controllers {
			v1Paths[ctrl] = cg.Path
		}
	}
	return v2Path, v1Paths, nil
}

// CgroupMemoryLimit returns the memory limit imposed on the current
// process's cgroup in bytes, or ErrNoLimit when unconstrained.
func CgroupMemoryLimit() (uint64, error) {
	return cgroupMemoryLimit(_defaultCgroupRoot)
}

func cgroupMemoryLimit(root string) (uint64, error) {
	v2Path, v1Paths, err := cgroupPaths()
	if err != nil {
		return 0, err
	}

	if v2Path != "" {
		data, err := os.ReadFile(filepath.Join(root, v2Path, "memory.max"))
		if err == nil {
			return parseMemoryMax(string(data))
		}
	}
	if path, ok := v1Paths["memory"]; ok {
		data, err := os.ReadFile(filepath.Join(root, "memory", path, "memory.limit_in_bytes"))
		if err == nil {
			return parseV1MemoryLimit(string(data))
		}
	}
	return 0, ErrNoLimit
}

// CgroupCPUQuota returns the CPU quota of the current process's cgroup as a
// number of cores, or ErrNoLimit when unconstrained.
func CgroupCPUQuota() (float64, error) {
	return cgroupCPUQuota(_defaultCgroupRoot)
}

func cgroupCPUQuota(root string) (float64, error) {
	v2Path, v1Paths, err := cgroupPaths()
	if err != nil {
		return 0, err
	}

	if v2Path != "" {
		data, err := os.ReadFile(filepath.Join(root, v2Path, "cpu.max"))
		if err == nil {
			return parseCPUMax(string(data))
		}
	}
	if path, ok := v1Paths["cpu"]; ok {
		quotaData, qErr := os.ReadFile(filepath.Join(root, "cpu", path, "cpu.cfs_quota_us"))
		periodData, pErr := os.ReadFile(filepath.Join(root, "cpu", path, "cpu.cfs_period_us"))
		if qErr == nil && pErr == nil {
			return parseV1CPUQuota(string(quotaData), string(periodData))
		}
	}
	return 0, ErrNoLimit
}

// NumCPUsWithQuota returns the usable CPU count, taking the cgroup CPU quota
// into account when one is set. Always at least 1.
func NumCPUsWithQuota() int {
	cpus := runtime.NumCPU()
	quota, err := CgroupCPUQuota()
	if err == nil && quota > 0 && quota < float64(cpus) {
		cpus = int(quota)
	}
	if cpus < 1 {
		cpus = 1
	}
	return cpus
}

// parseMemoryMax parses a cgroup v2 memory.max value: either "max" for
// unlimited or a byte count.
func parseMemoryMax(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "max" {
		return 0, ErrNoLimit
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse memory.max %q: %w", s, err)
	}
	return v, nil
}

// parseV1MemoryLimit parses a cgroup v1 memory.limit_in_bytes value. The
// kernel reports "unlimited" as a near-max page-rounded int64.
func parseV1MemoryLimit(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse memory.limit_in_bytes %q: %w", s, err)
	}
	if v >= _v1Unlimited {
		return 0, ErrNoLimit
	}
	return v, nil
}

// parseCPUMax parses a cgroup v2 cpu.max value: "$QUOTA $PERIOD" where
// quota may be "max" for unlimited. Returns the quota in cores.
func parseCPUMax(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, fmt.Errorf("parse cpu.max %q: want two fields", strings.TrimSpace(s))
	}
	if fields[0] == "max" {
		return 0, ErrNoLimit
	}
	quota, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse cpu.max quota %q: %w", fields[0], err)
	}
	period, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse cpu.max period %q: %w", fields[1], err)
	}
	if period <= 0 {
		return 0, fmt.Errorf("parse cpu.max %q: non-positive period", strings.TrimSpace(s))
	}
	return quota / period, nil
}

// parseV1CPUQuota parses cgroup v1 cfs_quota_us / cfs_period_us values.
// A quota of -1 means unlimited. Returns the quota in cores.
func parseV1CPUQuota(quotaStr, periodStr string) (float64, error) {
	quota, err := strconv.ParseFloat(strings.TrimSpace(quotaStr), 64)
	if err != nil {
		return 0, fmt.Errorf("parse cfs_quota_us %q: %w", strings.TrimSpace(quotaStr), err)
	}
	if quota < 0 {
		return 0, ErrNoLimit
	}
	period, err := strconv.ParseFloat(strings.TrimSpace(periodStr), 64)
	if err != nil {
		return 0, fmt.Errorf("parse cfs_period_us %q: %w", strings.TrimSpace(periodStr), err)
	}
	if period <= 0 {
		return 0, fmt.Errorf("parse cfs_period_us %q: non-positive period", strings.TrimSpace(periodStr))
	}
	return quota / period, nil
}
