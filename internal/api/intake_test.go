package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/guest-provisioner/internal/db"
	"github.com/yourorg/guest-provisioner/internal/types"
)

func intakeParams(t *testing.T) (types.RunParams, string) {
	t.Helper()
	dir := t.TempDir()
	return types.RunParams{
		PoolURI:            "file://" + filepath.Join(dir, "pool.txt"),
		RecordsURI:         "file://" + filepath.Join(dir, "operators.txt"),
		StorageURI:         "file://" + filepath.Join(dir, "chunks"),
		SuccessLedgerPath:  filepath.Join(dir, "success.txt"),
		FailureLedgerPath:  filepath.Join(dir, "failed.txt"),
		BatchSize:          1,
		WorkersPerOperator: 1,
	}, dir
}

func writeIntake(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckIntakeResources(t *testing.T) {
	p, dir := intakeParams(t)
	ctx := context.Background()

	if err := checkIntakeResources(ctx, p); err == nil || !strings.Contains(err.Error(), "pool resource missing") {
		t.Fatalf("missing pool: err=%v", err)
	}

	writeIntake(t, dir, "pool.txt", "a@x.io\nb@x.io\n")
	if err := checkIntakeResources(ctx, p); err == nil || !strings.Contains(err.Error(), "operator records resource missing") {
		t.Fatalf("missing records: err=%v", err)
	}

	writeIntake(t, dir, "operators.txt", "\n")
	if err := checkIntakeResources(ctx, p); err == nil || !strings.Contains(err.Error(), "operator records resource is empty") {
		t.Fatalf("empty records: err=%v", err)
	}

	writeIntake(t, dir, "operators.txt", "op@c.io\tpw\tx\tsec\tcid\ttid\n")
	if err := checkIntakeResources(ctx, p); err != nil {
		t.Fatalf("valid intake rejected: %v", err)
	}
}

type fakeRunRepo struct {
	enqueued []types.RunParams
}

func (f *fakeRunRepo) Enqueue(ctx context.Context, p types.RunParams) (db.Run, error) {
	f.enqueued = append(f.enqueued, p)
	return db.Run{ID: int64(len(f.enqueued)), Status: "queued"}, nil
}

func (f *fakeRunRepo) ClaimNext(ctx context.Context) (db.Run, error) {
	return db.Run{}, db.ErrNotFound
}

func (f *fakeRunRepo) UpdateStatus(ctx context.Context, id int64, status string, errMsg *string, summaryJSON []byte) error {
	return nil
}

func postRun(t *testing.T, h *EnqueueHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/runs", h.EnqueueRun)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestEnqueueRunRejectsMissingIntake(t *testing.T) {
	p, _ := intakeParams(t)
	repo := &fakeRunRepo{}
	h := NewEnqueueHandler(repo, p)

	w := postRun(t, h, `{"requested_by":"ops","cut_size":2}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(repo.enqueued) != 0 {
		t.Fatalf("run queued against missing intake: %+v", repo.enqueued)
	}
}

func TestEnqueueRunAcceptsStagedIntake(t *testing.T) {
	p, dir := intakeParams(t)
	writeIntake(t, dir, "pool.txt", "a@x.io\nb@x.io\n")
	writeIntake(t, dir, "operators.txt", "op@c.io\tpw\tx\tsec\tcid\ttid\n")
	repo := &fakeRunRepo{}
	h := NewEnqueueHandler(repo, p)

	w := postRun(t, h, `{"requested_by":"ops","cut_size":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(repo.enqueued) != 1 {
		t.Fatalf("enqueued=%d", len(repo.enqueued))
	}
	if got := repo.enqueued[0]; got.CutSize != 2 || got.PoolURI != p.PoolURI {
		t.Fatalf("queued params=%+v", got)
	}
}
