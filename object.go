package dataload

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// Object is an object in a storage bucket.
type Object struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// FullPath returns full path of storage object beginning with gs://.
func (o Object) FullPath() string {
	return fmt.Sprintf("gs://%s/%s", o.Bucket, o.Name)
}

// ParseObjectURI parses "gs://bucket/name" or "s3://bucket/name".
func ParseObjectURI(uri string) (Object, error) {
	var rest string
	switch {
	case strings.HasPrefix(uri, "gs://"):
		rest = strings.TrimPrefix(uri, "gs://")
	case strings.HasPrefix(uri, "s3://"):
		rest = strings.TrimPrefix(uri, "s3://")
	default:
		return Object{}, xerrors.Errorf("invalid object uri %q", uri)
	}

	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Object{}, xerrors.Errorf("invalid object uri %q", uri)
	}

	return Object{Bucket: parts[0], Name: parts[1]}, nil
}
