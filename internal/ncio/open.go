// Package ncio reads climate drivers and masks from NetCDF files and
// writes suitability products back out.
package ncio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/cenkalti/backoff/v4"
)

// OpenTimeout bounds how long an open is retried for transient errors,
// such as a network filesystem that is briefly unavailable.
var OpenTimeout = 30 * time.Second

// open opens a NetCDF file, retrying with exponential backoff. Missing
// files and files that are not NetCDF fail at once.
func open(ctx context.Context, path string) (api.Group, error) {
	var nc api.Group
	operation := func() error {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return backoff.Permanent(fmt.Errorf("open %s: %w", path, err))
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		g, err := netcdf.Open(path)
		if err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				return fmt.Errorf("open %s: %w", path, err)
			}
			return backoff.Permanent(fmt.Errorf("open %s: %w", path, err))
		}
		nc = g
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = OpenTimeout
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return nc, nil
}
