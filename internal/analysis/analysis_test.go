package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/garnizeh/hireflow/internal/models"
	"github.com/garnizeh/hireflow/internal/tasks"
	"github.com/garnizeh/hireflow/pkg/repository/mock"
)

const fullBehavioral = `{
 "facial": {"confidence": 0.8, "engagement": 0.6, "stress": 0.2, "emotion_distribution": {"happy": 40, "neutral": 50, "nervous": 10}},
 "voice": {
  "features": {"pitch_mean": 180.5, "pitch_std": 20.1, "speech_rate": 2.4, "energy_var": 0.03, "duration_sec": 61},
  "scores": {"confidence": 0.7, "clarity": 0.9}
 },
 "text": {"sentiment": {"pos": 0.2, "neu": 0.7, "neg": 0.1, "compound": 0.35}}
}`

func init() {
	SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newStore(t *testing.T) (*mock.Store, string, string) {
	t.Helper()
	ctx := context.Background()
	s := mock.NewStore()
	jobID, err := s.CreateJob(ctx, &models.Job{Title: "Backend", Description: "Go services"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	appID, err := s.CreateApplication(ctx, &models.Application{JobID: jobID, CandidateName: "ada", Email: "ada@example.com", ResumeRef: "r.pdf", VideoRef: "v.mp4"})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	return s, jobID, appID
}

func newMerger(t *testing.T, s *mock.Store) *Merger {
	t.Helper()
	m, err := NewMerger(s)
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	return m
}

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string    { return &v }

func TestMerger_FieldsAreIndependent(t *testing.T) {
	s, _, id := newStore(t)
	m := newMerger(t, s)
	ctx := context.Background()

	if err := m.MergeBehavioral(ctx, id, []byte(fullBehavioral)); err != nil {
		t.Fatalf("MergeBehavioral: %v", err)
	}
	if err := m.MergeMatch(ctx, id, MatchResult{MatchScore: fptr(82), Skills: []string{" go ", "", "sql"}}); err != nil {
		t.Fatalf("MergeMatch: %v", err)
	}
	if err := m.MergeClassification(ctx, id, ClassificationResult{Classification: "Backend Engineer"}); err != nil {
		t.Fatalf("MergeClassification: %v", err)
	}

	app, _ := s.GetApplication(ctx, id)
	if app.BehavioralScore == nil || app.BehavioralScore.Facial.Confidence != 0.8 {
		t.Fatalf("behavioral score lost: %+v", app.BehavioralScore)
	}
	if app.MatchScore == nil || *app.MatchScore != 82 {
		t.Fatalf("match score lost: %v", app.MatchScore)
	}
	if app.Classification != "Backend Engineer" {
		t.Fatalf("classification: %q", app.Classification)
	}
	if strings.Join(app.Skills, ",") != "go,sql" {
		t.Fatalf("skills from the match merge must survive a classification without skills: %v", app.Skills)
	}
}

func TestMerger_Rejections(t *testing.T) {
	s, _, id := newStore(t)
	m := newMerger(t, s)
	ctx := context.Background()

	partial := `{"facial": {"confidence": 0.8, "engagement": 0.6, "stress": 0.2}}`
	outOfRange := strings.Replace(fullBehavioral, `"compound": 0.35`, `"compound": 1.5`, 1)

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"partial behavioral", m.MergeBehavioral(ctx, id, []byte(partial)), models.ErrValidation},
		{"out of range behavioral", m.MergeBehavioral(ctx, id, []byte(outOfRange)), models.ErrValidation},
		{"empty behavioral", m.MergeBehavioral(ctx, id, nil), models.ErrValidation},
		{"missing match score", m.MergeMatch(ctx, id, MatchResult{}), models.ErrValidation},
		{"match over 100", m.MergeMatch(ctx, id, MatchResult{MatchScore: fptr(101)}), models.ErrValidation},
		{"blank classification", m.MergeMatch(ctx, id, MatchResult{MatchScore: fptr(10), Classification: sptr(" ")}), models.ErrValidation},
		{"empty classification", m.MergeClassification(ctx, id, ClassificationResult{}), models.ErrValidation},
		{"unknown application", m.MergeMatch(ctx, "nope", MatchResult{MatchScore: fptr(50)}), models.ErrNotFound},
		{"unknown kind", m.Apply(ctx, Result{ApplicationID: id, Kind: "astrology"}), models.ErrValidation},
		{"missing id", m.Apply(ctx, Result{Kind: KindMatch}), models.ErrValidation},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.err)
		}
	}

	app, _ := s.GetApplication(ctx, id)
	if app.BehavioralScore != nil || app.MatchScore != nil {
		t.Fatalf("rejected merges must not write: %+v", app)
	}
}

func TestMerger_Apply(t *testing.T) {
	s, _, id := newStore(t)
	m := newMerger(t, s)
	ctx := context.Background()

	if err := m.Apply(ctx, Result{ApplicationID: id, Kind: KindMatch, Payload: json.RawMessage(`{"match_score": 64.5, "classification": "Data"}`)}); err != nil {
		t.Fatalf("Apply match: %v", err)
	}
	if err := m.Apply(ctx, Result{ApplicationID: id, Kind: KindBehavioral, Payload: json.RawMessage(fullBehavioral)}); err != nil {
		t.Fatalf("Apply behavioral: %v", err)
	}
	app, _ := s.GetApplication(ctx, id)
	if *app.MatchScore != 64.5 || app.Classification != "Data" || app.BehavioralScore == nil {
		t.Fatalf("unexpected record %+v", app)
	}
}

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []Request
	err  error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, r Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, r)
	return d.err
}

func task(t *testing.T, appID string) *models.Task {
	t.Helper()
	b, err := json.Marshal(tasks.AnalysisRequest{ApplicationID: appID})
	if err != nil {
		t.Fatal(err)
	}
	return &models.Task{Type: tasks.TypeAnalysisRequest, Payload: b}
}

func TestRequestHandler(t *testing.T) {
	s, jobID, appID := newStore(t)
	d := &recordingDispatcher{}
	h := NewRequestHandler(s, s, d, "https://hireflow.example.com/")
	ctx := context.Background()

	if err := h.Handle(ctx, task(t, appID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(d.reqs) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(d.reqs))
	}
	got := d.reqs[0]
	want := Request{
		ApplicationID:  appID,
		JobID:          jobID,
		ResumeRef:      "r.pdf",
		VideoRef:       "v.mp4",
		ResumeURL:      "https://hireflow.example.com/api/blobs/r.pdf",
		VideoURL:       "https://hireflow.example.com/api/blobs/v.mp4",
		JobDescription: "Go services",
		CallbackURL:    "https://hireflow.example.com/api/applications/" + appID,
	}
	if got != want {
		t.Fatalf("request\n got %+v\nwant %+v", got, want)
	}

	d.err = errors.New("connection refused")
	if err := h.Handle(ctx, task(t, appID)); !errors.Is(err, models.ErrUpstreamUnavailable) || errors.Is(err, tasks.ErrPermanent) {
		t.Fatalf("dispatch failure must be retryable upstream error, got %v", err)
	}

	if err := h.Handle(ctx, task(t, "gone")); !errors.Is(err, tasks.ErrPermanent) {
		t.Fatalf("expected ErrPermanent for unknown application, got %v", err)
	}
	if err := h.Handle(ctx, &models.Task{Payload: json.RawMessage(`not json`)}); !errors.Is(err, tasks.ErrPermanent) {
		t.Fatalf("expected ErrPermanent for bad payload, got %v", err)
	}
}

func TestRequestHandler_SkipsCompleteApplications(t *testing.T) {
	s, _, appID := newStore(t)
	ctx := context.Background()
	m := newMerger(t, s)
	if err := m.MergeMatch(ctx, appID, MatchResult{MatchScore: fptr(70)}); err != nil {
		t.Fatal(err)
	}
	if err := m.MergeBehavioral(ctx, appID, []byte(fullBehavioral)); err != nil {
		t.Fatal(err)
	}

	d := &recordingDispatcher{}
	if err := NewRequestHandler(s, s, d, "").Handle(ctx, task(t, appID)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(d.reqs) != 0 {
		t.Fatalf("complete application must not be dispatched again")
	}
}

func TestHTTPDispatcher(t *testing.T) {
	var (
		mu   sync.Mutex
		hits []Request
	)
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(TokenHeader) != "s3cret" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		hits = append(hits, req)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ok.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "analyzer overloaded", http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	ctx := context.Background()
	req := Request{ApplicationID: "a1", JobID: "j1"}

	d := NewHTTPDispatcher([]string{ok.URL, ok.URL}, "s3cret", 0)
	if err := d.Dispatch(ctx, req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(hits) != 2 || hits[0].ApplicationID != "a1" {
		t.Fatalf("expected both endpoints to receive the request, got %+v", hits)
	}

	err := NewHTTPDispatcher([]string{ok.URL, bad.URL}, "s3cret", 0).Dispatch(ctx, req)
	if err == nil || !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "analyzer overloaded") {
		t.Fatalf("expected 503 error from the failing endpoint, got %v", err)
	}

	if err := NewHTTPDispatcher(nil, "", 0).Dispatch(ctx, req); err == nil {
		t.Fatalf("expected error without endpoints")
	}
}

type fakePublisher struct {
	queue string
	msg   amqp.Publishing
	err   error
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	p.queue, p.msg = key, msg
	return p.err
}

func TestAMQPDispatcher(t *testing.T) {
	pub := &fakePublisher{}
	d := NewAMQPDispatcher(pub, "analysis_requests")
	if err := d.Dispatch(context.Background(), Request{ApplicationID: "a1", ResumeRef: "r"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if pub.queue != "analysis_requests" || pub.msg.DeliveryMode != amqp.Persistent || pub.msg.ContentType != "application/json" {
		t.Fatalf("unexpected publish: %s %+v", pub.queue, pub.msg)
	}
	var got Request
	if err := json.Unmarshal(pub.msg.Body, &got); err != nil || got.ApplicationID != "a1" {
		t.Fatalf("unexpected body %s: %v", pub.msg.Body, err)
	}

	pub.err = amqp.ErrClosed
	if err := d.Dispatch(context.Background(), Request{ApplicationID: "a1"}); !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("expected publish error, got %v", err)
	}
}

// ackRecorder records the outcome of each delivery by tag.
type ackRecorder struct {
	mu      sync.Mutex
	acked   []uint64
	dropped []uint64
	requeue []uint64
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeue = append(a.requeue, tag)
	} else {
		a.dropped = append(a.dropped, tag)
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeChannel struct {
	deliveries chan amqp.Delivery
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if autoAck {
		return nil, errors.New("results must be acked manually")
	}
	return c.deliveries, nil
}

func TestConsumer(t *testing.T) {
	s, _, appID := newStore(t)
	m := newMerger(t, s)
	acks := &ackRecorder{}
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 4)}

	send := func(tag uint64, body string) {
		ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: tag, Body: []byte(body)}
	}
	send(1, `{"application_id":"`+appID+`","kind":"match","payload":{"match_score":91}}`)
	send(2, `{"application_id":"`+appID+`","kind":"behavioral","payload":{"facial":{}}}`)
	send(3, `garbage`)
	send(4, `{"application_id":"missing","kind":"classification","payload":{"classification":"Ops"}}`)
	close(ch.deliveries)

	err := NewConsumer(ch, "analysis_results", m).Run(context.Background())
	if err == nil {
		t.Fatalf("expected error when the delivery channel closes")
	}

	if len(acks.acked) != 1 || acks.acked[0] != 1 {
		t.Fatalf("expected only delivery 1 acked, got %v", acks.acked)
	}
	if len(acks.dropped) != 3 || len(acks.requeue) != 0 {
		t.Fatalf("expected 3 dropped and none requeued, got %v / %v", acks.dropped, acks.requeue)
	}
	app, _ := s.GetApplication(context.Background(), appID)
	if app.MatchScore == nil || *app.MatchScore != 91 || app.BehavioralScore != nil {
		t.Fatalf("unexpected record %+v", app)
	}
}

func TestConsumer_StopsOnContext(t *testing.T) {
	s, _, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery)}
	if err := NewConsumer(ch, "q", newMerger(t, s)).Run(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}
