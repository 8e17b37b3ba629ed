package iopkg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// The pipeline's persistent state (master pool, per-operator chunks, run
// summaries) is plain line-oriented text addressed by file:// or s3:// URIs.

// s3iface is the minimal subset of s3 client methods we use; allows test fakes.
type s3iface interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// newS3Client constructs an s3 client; overridden in tests.
var newS3Client = func(ctx context.Context) (s3iface, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// Open returns a ReadCloser for a file:// or s3:// URI.
func Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "file", "":
		return os.Open(localPath(uri))
	case "s3":
		cl, err := newS3Client(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := cl.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(u.Host),
			Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
		})
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	default:
		return nil, errors.New("unsupported scheme: " + u.Scheme)
	}
}

// ReadLines reads the whole resource and splits it into lines, dropping the
// trailing empty line a final newline produces.
func ReadLines(ctx context.Context, uri string) ([]string, error) {
	rc, err := Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	lines := strings.Split(string(b), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// WriteLines persists lines as the full content of the resource in one
// commit. For file:// this writes a temp file and renames it over the target
// so a crash never leaves a partially written pool; s3 puts are atomic by
// themselves.
func WriteLines(ctx context.Context, uri string, lines []string) error {
	var body []byte
	if len(lines) > 0 {
		body = []byte(strings.Join(lines, "\n") + "\n")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "file", "":
		return writeFileAtomic(localPath(uri), body)
	case "s3":
		cl, err := newS3Client(ctx)
		if err != nil {
			return err
		}
		_, err = cl.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(u.Host),
			Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
			Body:   bytes.NewReader(body),
		})
		return err
	default:
		return errors.New("unsupported scheme: " + u.Scheme)
	}
}

// Exists reports whether the resource can be opened.
func Exists(ctx context.Context, uri string) bool {
	rc, err := Open(ctx, uri)
	if err != nil {
		return false
	}
	rc.Close()
	return true
}

// Join appends a path element to a URI prefix.
func Join(prefix, name string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func writeFileAtomic(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
