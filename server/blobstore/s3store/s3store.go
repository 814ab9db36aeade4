// Package s3store keeps uploaded audio in an s3 compatible bucket
package s3store

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type Store struct {
	client *minio.Client
	bucket string
}

func New(endpoint, accessKey, secretKey, bucket string, secure bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create s3 client")
	}
	return &Store{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *Store) Put(key string, r io.Reader) (string, error) {
	// size -1 so the client streams the payload in parts
	_, err := s.client.PutObject(context.Background(),
		s.bucket, key, r, -1, minio.PutObjectOptions{})
	if err != nil {
		return "", errors.Wrap(err, "put object")
	}
	return key, nil
}

func (s *Store) Delete(locator string) error {
	err := s.client.RemoveObject(context.Background(),
		s.bucket, locator, minio.RemoveObjectOptions{})
	if err != nil {
		return errors.Wrap(err, "remove object")
	}
	return nil
}
