package intake_test

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/garnizeh/hireflow/internal/blob"
	"github.com/garnizeh/hireflow/internal/intake"
	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/internal/tasks"
	"github.com/garnizeh/hireflow/pkg/repository/mock"
)

type fixture struct {
	store *mock.Store
	blobs *blob.FileStore
	svc   *intake.Service
	jobID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := mock.NewStore()
	blobs, err := blob.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	jobID, err := store.CreateJob(context.Background(), &models.Job{Title: "Backend Engineer"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return &fixture{store: store, blobs: blobs, svc: intake.NewService(store, store, store, blobs, nil), jobID: jobID}
}

func validSubmission(jobID string) intake.Submission {
	return intake.Submission{
		JobID:         jobID,
		CandidateName: "  Ada Lovelace ",
		Email:         "ada@example.com",
		Resume:        intake.File{Name: "cv.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")},
		Video:         intake.File{Name: "intro.webm", ContentType: "video/webm;codecs=vp9", Body: strings.NewReader("webm")},
	}
}

func blobCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read blob dir: %v", err)
	}
	return len(entries)
}

func TestSubmit_CreatesSubmittedApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.Submit(ctx, validSubmission(f.jobID))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	app, err := f.store.GetApplication(ctx, id)
	if err != nil || app == nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if app.State != models.StateSubmitted {
		t.Fatalf("expected submitted, got %q", app.State)
	}
	if app.ResumeRef == "" || app.VideoRef == "" {
		t.Fatalf("blob refs must be populated: %#v", app)
	}
	if app.CandidateName != "Ada Lovelace" {
		t.Fatalf("name should be trimmed, got %q", app.CandidateName)
	}
	if app.MatchScore != nil || app.MCQScore != nil || app.BehavioralScore != nil || app.Classification != models.DefaultClassification {
		t.Fatalf("async fields must be unset: %#v", app)
	}
	if got := blobCount(t, f.blobs.Dir); got != 2 {
		t.Fatalf("expected 2 blobs, got %d", got)
	}
	if types := f.store.TaskTypes(); len(types) != 1 || types[0] != tasks.TypeAnalysisRequest {
		t.Fatalf("expected one analysis task, got %v", types)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		mutate func(*intake.Submission)
		want   error
	}{
		{"unknown job", func(s *intake.Submission) { s.JobID = "nope" }, models.ErrNotFound},
		{"blank name", func(s *intake.Submission) { s.CandidateName = "   " }, models.ErrValidation},
		{"blank email", func(s *intake.Submission) { s.Email = "" }, models.ErrValidation},
		{"malformed email", func(s *intake.Submission) { s.Email = "not-an-email" }, models.ErrValidation},
		{"resume not pdf", func(s *intake.Submission) { s.Resume.ContentType = "image/png" }, models.ErrUnsupportedMediaType},
		{"video not video", func(s *intake.Submission) { s.Video.ContentType = "audio/mpeg" }, models.ErrUnsupportedMediaType},
		{"missing resume", func(s *intake.Submission) { s.Resume.Body = nil }, models.ErrValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sub := validSubmission(f.jobID)
			c.mutate(&sub)
			if _, err := f.svc.Submit(context.Background(), sub); !errors.Is(err, c.want) {
				t.Fatalf("expected %v, got %v", c.want, err)
			}
		})
	}
	if got := blobCount(t, f.blobs.Dir); got != 0 {
		t.Fatalf("rejected submissions must not store blobs, found %d", got)
	}
}

func TestSubmit_InsertFailureRemovesBlobs(t *testing.T) {
	f := newFixture(t)
	f.store.CreateAppErr = errors.New("disk full")

	if _, err := f.svc.Submit(context.Background(), validSubmission(f.jobID)); err == nil {
		t.Fatalf("expected error")
	}
	if got := blobCount(t, f.blobs.Dir); got != 0 {
		t.Fatalf("expected orphan blobs removed, found %d", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestSubmit_VideoWriteFailureRemovesResume(t *testing.T) {
	f := newFixture(t)
	sub := validSubmission(f.jobID)
	sub.Video.Body = failingReader{}

	if _, err := f.svc.Submit(context.Background(), sub); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected upload error, got %v", err)
	}
	if got := blobCount(t, f.blobs.Dir); got != 0 {
		t.Fatalf("expected resume blob removed, found %d", got)
	}
}

func TestSubmit_EnqueueFailureDoesNotFailIntake(t *testing.T) {
	f := newFixture(t)
	f.store.EnqueueErr = errors.New("queue unavailable")

	id, err := f.svc.Submit(context.Background(), validSubmission(f.jobID))
	if err != nil {
		t.Fatalf("intake must succeed when hand-off fails: %v", err)
	}
	if app, _ := f.store.GetApplication(context.Background(), id); app == nil {
		t.Fatalf("application should exist")
	}
}

// deletingStore removes the job while the first upload is being written.
type deletingStore struct {
	blob.Store
	once func()
}

func (d *deletingStore) Put(ctx context.Context, r io.Reader, contentType, name string) (string, error) {
	if d.once != nil {
		d.once()
		d.once = nil
	}
	return d.Store.Put(ctx, r, contentType, name)
}

func TestSubmit_JobDeletedDuringUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blobs := &deletingStore{Store: f.blobs, once: func() {
		if err := f.store.DeleteJob(ctx, f.jobID); err != nil {
			t.Errorf("DeleteJob: %v", err)
		}
	}}
	svc := intake.NewService(f.store, f.store, f.store, blobs, nil)

	id, err := svc.Submit(ctx, validSubmission(f.jobID))
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got id=%q err=%v", id, err)
	}
	apps, err := f.store.ListApplicationsByJob(ctx, f.jobID)
	if err != nil {
		t.Fatalf("ListApplicationsByJob: %v", err)
	}
	if len(apps) != 0 {
		t.Fatalf("no application may reference a deleted job, got %d", len(apps))
	}
	if got := blobCount(t, f.blobs.Dir); got != 0 {
		t.Fatalf("expected uploads removed, found %d", got)
	}
}
