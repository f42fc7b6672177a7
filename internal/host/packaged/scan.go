package packaged

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// PlatformDir returns the deployment directory for a platform.
func PlatformDir(root, platform string) string {
	return filepath.Join(root, platform)
}

// PackagePath returns where a packed file is deployed.
func PackagePath(root, platform, packedName string) string {
	return filepath.Join(root, platform, packedName)
}

// Scan lists every .package file under <root>/<platform>, relative to that
// directory and sorted.
func Scan(root, platform string) ([]string, error) {
	dir := PlatformDir(root, platform)
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	pattern := "**/*" + types.PackageExt

	var mu sync.Mutex
	var found []string
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(pattern, rel); ok {
			mu.Lock()
			found = append(found, rel)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}
