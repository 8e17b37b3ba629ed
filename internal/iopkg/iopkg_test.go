package iopkg

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	getBody       []byte
	getErr        error
	putLastBucket string
	putLastKey    string
	putLastBody   []byte
	putErr        error
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rc := io.NopCloser(bytes.NewReader(f.getBody))
	cl := int64(len(f.getBody))
	return &s3.GetObjectOutput{Body: rc, ContentLength: &cl}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.putLastBucket = aws.ToString(in.Bucket)
	f.putLastKey = aws.ToString(in.Key)
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.putLastBody = b
	}
	return &s3.PutObjectOutput{}, nil
}

func withFakeS3(t *testing.T, f *fakeS3) func() {
	old := newS3Client
	newS3Client = func(ctx context.Context) (s3iface, error) { return f, nil }
	return func() { newS3Client = old }
}

func TestReadLinesFile(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "pool.txt")
	if err := os.WriteFile(p, []byte("a@x.io\nb@x.io\nc@x.io\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := ReadLines(ctx, "file://"+p)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if len(lines) != 3 || lines[2] != "c@x.io" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestWriteLinesFileAtomic(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := filepath.Join(dir, "pool.txt")
	if err := WriteLines(ctx, "file://"+p, []string{"x", "y"}); err != nil {
		t.Fatalf("WriteLines: %v", err)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "x\ny\n" {
		t.Fatalf("content=%q", string(b))
	}
	// overwrite leaves no temp files behind
	if err := WriteLines(ctx, "file://"+p, nil); err != nil {
		t.Fatalf("WriteLines empty: %v", err)
	}
	b, _ = os.ReadFile(p)
	if len(b) != 0 {
		t.Fatalf("expected empty file, got %q", string(b))
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("leftover temp files: %v", entries)
	}
}

func TestReadLinesS3Mock(t *testing.T) {
	f := &fakeS3{getBody: []byte("one\ntwo\n")}
	defer withFakeS3(t, f)()
	lines, err := ReadLines(context.Background(), "s3://bucket/key/pool.txt")
	if err != nil {
		t.Fatalf("ReadLines s3: %v", err)
	}
	if len(lines) != 2 || lines[0] != "one" {
		t.Fatalf("lines=%v", lines)
	}
}

func TestWriteLinesS3Mock(t *testing.T) {
	f := &fakeS3{}
	defer withFakeS3(t, f)()
	if err := WriteLines(context.Background(), "s3://mybucket/dir/chunk.txt", []string{"a"}); err != nil {
		t.Fatalf("WriteLines s3: %v", err)
	}
	if f.putLastBucket != "mybucket" || f.putLastKey != "dir/chunk.txt" {
		t.Fatalf("put to %s/%s", f.putLastBucket, f.putLastKey)
	}
	if string(f.putLastBody) != "a\n" {
		t.Fatalf("body=%q", string(f.putLastBody))
	}
}

func TestExistsAndJoin(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "x.txt")
	if Exists(ctx, "file://"+p) {
		t.Fatal("missing file reported as existing")
	}
	os.WriteFile(p, []byte("z"), 0o644)
	if !Exists(ctx, "file://"+p) {
		t.Fatal("existing file reported missing")
	}
	if got := Join("s3://b/prefix/", "op.txt"); got != "s3://b/prefix/op.txt" {
		t.Fatalf("Join=%q", got)
	}
}
