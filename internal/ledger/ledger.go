// Package ledger is the append-only record of per-operator outcomes.
// Operators in the same batch append concurrently, so every write goes
// through one mutex; entries are never updated or deleted.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Ledger struct {
	mu          sync.Mutex
	successPath string
	failurePath string
}

func New(successPath, failurePath string) *Ledger {
	return &Ledger{successPath: successPath, failurePath: failurePath}
}

// Success appends "<operator> - <count>" to the success ledger.
func (l *Ledger) Success(operatorEmail string, created int) error {
	return l.appendLine(l.successPath, fmt.Sprintf("%s - %d", operatorEmail, created))
}

// Failure appends "<operator>" to the failure ledger.
func (l *Ledger) Failure(operatorEmail string) error {
	return l.appendLine(l.failurePath, operatorEmail)
}

// Touch ensures both ledger files exist so the reporting side can read them
// even after a run with no entries.
func (l *Ledger) Touch() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range []string{l.successPath, l.failurePath} {
		f, err := openAppend(p)
		if err != nil {
			return err
		}
		f.Close()
	}
	return nil
}

func (l *Ledger) appendLine(path, line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := openAppend(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// Read returns the lines of both ledgers for the reporting collaborator.
// Missing files read as empty.
func Read(successPath, failurePath string) (successes, failures []string, err error) {
	successes, err = readLines(successPath)
	if err != nil {
		return nil, nil, err
	}
	failures, err = readLines(failurePath)
	if err != nil {
		return nil, nil, err
	}
	return successes, failures, nil
}

func readLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
