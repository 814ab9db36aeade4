// Package blobstore abstracts where raw audio bytes live. Put returns a
// locator which is the only handle needed to delete the content later.
// the local backend hands back a filesystem path, the s3 backend an
// object key
package blobstore

import "io"

type Store interface {
	Put(key string, r io.Reader) (string, error)
	Delete(locator string) error
}
