package worker

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/voltmidia/ytops-backend/pkg/config"
	pkgerrors "github.com/voltmidia/ytops-backend/pkg/errors"
)

const mb = 1024 * 1024

// ResourceGuard blocks upload ticks when the host is too low on memory
// or scratch-disk space to hold a video download.
type ResourceGuard struct {
	minFreeMemoryMB uint64
	minFreeDiskMB   uint64
	scratchPath     string
}

// NewResourceGuard builds the guard from worker config.
func NewResourceGuard(cfg config.WorkerConfig) *ResourceGuard {
	return &ResourceGuard{
		minFreeMemoryMB: cfg.MinFreeMemoryMB,
		minFreeDiskMB:   cfg.MinFreeDiskMB,
		scratchPath:     cfg.TempVideoPath,
	}
}

// Check returns a resource-exhausted error when free memory or free
// disk at the scratch path sits below the configured floor.
func (g *ResourceGuard) Check(ctx context.Context) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading memory stats")
	}
	if vm.Available/mb < g.minFreeMemoryMB {
		return pkgerrors.New(pkgerrors.CodeExhausted, "insufficient free memory for uploads").
			WithDetails(map[string]any{
				"available_mb": vm.Available / mb,
				"required_mb":  g.minFreeMemoryMB,
			})
	}

	usage, err := disk.UsageWithContext(ctx, g.scratchPath)
	if err != nil {
		// Scratch dir may not exist until the first download; fall back
		// to the filesystem root.
		usage, err = disk.UsageWithContext(ctx, "/")
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading disk stats")
		}
	}
	if usage.Free/mb < g.minFreeDiskMB {
		return pkgerrors.New(pkgerrors.CodeExhausted, "insufficient free disk for uploads").
			WithDetails(map[string]any{
				"free_mb":     usage.Free / mb,
				"required_mb": g.minFreeDiskMB,
			})
	}
	return nil
}
