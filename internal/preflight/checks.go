package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"podcompanion/internal/config"
	"podcompanion/internal/deps"
	"podcompanion/internal/statuscache"
)

// MinFreeBytes is the free space below which the staging and media
// filesystems are reported as failing.
const MinFreeBytes = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckReadable verifies read access to an externally owned file or directory.
// Podsync owns these paths, so write access is not required.
func CheckReadable(name, path string, optional bool) Result {
	result := Result{Name: name, Optional: optional}
	if strings.TrimSpace(path) == "" {
		result.Detail = "not configured"
		return result
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			result.Detail = fmt.Sprintf("%s (error: does not exist)", path)
			return result
		}
		result.Detail = fmt.Sprintf("%s (error: stat: %v)", path, err)
		return result
	}
	mode := uint32(unix.R_OK)
	if info.IsDir() {
		mode |= unix.X_OK
	}
	if err := unix.Access(path, mode); err != nil {
		result.Detail = fmt.Sprintf("%s (error: not readable: %v)", path, err)
		return result
	}
	result.Passed = true
	result.Detail = fmt.Sprintf("%s (readable)", path)
	return result
}

// CheckFreeSpace reports the space available to unprivileged writers on the
// filesystem holding path.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (below %s)", detail, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckBinaries converts dependency lookups into results.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := deps.Check(cfg)
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// CheckRedis verifies the optional status cache server answers.
func CheckRedis(ctx context.Context, rawURL, prefix string) Result {
	result := Result{Name: "Status cache", Optional: true}
	cache, err := statuscache.DialRedis(ctx, rawURL, prefix)
	if err != nil {
		result.Detail = fmt.Sprintf("unavailable, using memory (%v)", err)
		return result
	}
	_ = cache.Close()
	result.Passed = true
	result.Detail = "redis reachable"
	return result
}

func feedDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ManualFeedFile)
}
