package ledger

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
)

func newLedger(t *testing.T) (*Ledger, string, string) {
	dir := t.TempDir()
	s := filepath.Join(dir, "success.txt")
	f := filepath.Join(dir, "failed.txt")
	return New(s, f), s, f
}

func TestSuccessAndFailureFormats(t *testing.T) {
	l, s, f := newLedger(t)
	if err := l.Success("op@contoso.com", 5); err != nil {
		t.Fatal(err)
	}
	if err := l.Failure("bad@contoso.com"); err != nil {
		t.Fatal(err)
	}
	succ, fail, err := Read(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if len(succ) != 1 || succ[0] != "op@contoso.com - 5" {
		t.Fatalf("success=%v", succ)
	}
	if len(fail) != 1 || fail[0] != "bad@contoso.com" {
		t.Fatalf("failure=%v", fail)
	}
}

func TestConcurrentAppendsAreNotInterleaved(t *testing.T) {
	l, s, _ := newLedger(t)
	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := l.Success(fmt.Sprintf("op%02d@x.io", i), i); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	succ, _, err := Read(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(succ) != n {
		t.Fatalf("got %d lines, want %d", len(succ), n)
	}
	wellFormed := regexp.MustCompile(`^op\d{2}@x\.io - \d+$`)
	for _, line := range succ {
		if !wellFormed.MatchString(line) {
			t.Fatalf("corrupt line %q", line)
		}
	}
}

func TestAppendOnlyNoDedup(t *testing.T) {
	// Re-running the same operator appends a second entry; that is expected,
	// not a bug.
	l, s, _ := newLedger(t)
	l.Success("op@x.io", 3)
	l.Success("op@x.io", 4)
	succ, _, _ := Read(s, "")
	if len(succ) != 2 {
		t.Fatalf("entries=%d, want 2", len(succ))
	}
}

func TestTouchCreatesEmptyLedgers(t *testing.T) {
	l, s, f := newLedger(t)
	if err := l.Touch(); err != nil {
		t.Fatal(err)
	}
	succ, fail, err := Read(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if len(succ) != 0 || len(fail) != 0 {
		t.Fatalf("expected empty ledgers, got %v %v", succ, fail)
	}
}

func TestReadMissingFiles(t *testing.T) {
	succ, fail, err := Read("/nonexistent/s.txt", "/nonexistent/f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if succ != nil || fail != nil {
		t.Fatalf("expected nil slices, got %v %v", succ, fail)
	}
}
