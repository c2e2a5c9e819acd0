package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// ResultStorage writes job results to one file per job.
type ResultStorage struct {
	BaseDir string
}

// NewResultStorage creates a result store rooted at baseDir.
func NewResultStorage(baseDir string) *ResultStorage {
	return &ResultStorage{BaseDir: baseDir}
}

// Prepare makes sure the base directory exists and is writable.
func (rs *ResultStorage) Prepare() error {
	if err := os.MkdirAll(rs.BaseDir, 0o775); err != nil {
		return errors.Wrapf(err, "create results directory %s", rs.BaseDir)
	}
	probe, err := os.CreateTemp(rs.BaseDir, ".probe-*")
	if err != nil {
		return errors.Wrapf(err, "results directory %s is not writable (uid %d)", rs.BaseDir, os.Geteuid())
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// PathFor returns the file that holds the result of job id.
func (rs *ResultStorage) PathFor(id uint64) string {
	return filepath.Join(rs.BaseDir, strconv.FormatUint(id, 10)+".txt")
}

// SaveResult writes output for job id and returns the file path. The file is
// written under a temporary name first so readers never see a partial result.
func (rs *ResultStorage) SaveResult(id uint64, output string) (string, error) {
	path := rs.PathFor(id)
	tmp := fmt.Sprintf("%s.tmp", path)
	if err := os.WriteFile(tmp, []byte(output), 0o644); err != nil {
		return "", errors.Wrapf(err, "write result %d", id)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrapf(err, "write result %d", id)
	}
	return path, nil
}

// LoadResult reads back the stored result of job id.
func (rs *ResultStorage) LoadResult(id uint64) (string, error) {
	data, err := os.ReadFile(rs.PathFor(id))
	if err != nil {
		return "", errors.Wrapf(err, "read result %d", id)
	}
	return string(data), nil
}
