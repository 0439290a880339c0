// Package blob selects the object store that keeps archived record revisions.
package blob

import (
	"context"
	"fmt"

	"github.com/Narodni-repozitar/nr-Nresults/internal/blob/core"
	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/blob/fs"
	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/blob/memory"
	"github.com/Narodni-repozitar/nr-Nresults/internal/infra/blob/s3"
)

type (
	Driver     = core.Driver
	PutOptions = core.PutOptions
	Info       = core.Info
	Store      = core.Store
	S3Config   = s3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

// Config selects a backend. An empty driver disables blob storage.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the store named by cfg.Driver. It returns a nil store when no
// driver is configured.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
