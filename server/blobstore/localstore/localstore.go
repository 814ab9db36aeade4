// Package localstore keeps uploaded audio as plain files under a base
// directory
package localstore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"go.senan.xyz/stash/server/fileutil"
)

type Store struct {
	base string
}

func New(base string) (*Store, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, errors.Wrap(err, "resolve base dir")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "create base dir")
	}
	return &Store{base: abs}, nil
}

func (s *Store) Put(key string, r io.Reader) (string, error) {
	dest := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrap(err, "create key dir")
	}
	// don't clobber an earlier upload that had the same filename
	dest, err := fileutil.Unique(filepath.Dir(dest), filepath.Base(dest))
	if err != nil {
		return "", errors.Wrap(err, "find unique path")
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(err, "create blob file")
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dest)
		return "", errors.Wrap(err, "write blob file")
	}
	return dest, nil
}

func (s *Store) Delete(locator string) error {
	return os.Remove(locator)
}
