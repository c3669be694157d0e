package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TokenHeader carries the shared secret between the service and analyzers.
const TokenHeader = "X-Analyzer-Token"

// Request is what an analyzer receives for one application. Analyzers fetch
// the media from ResumeURL and VideoURL with the analyzer token and answer
// by writing to CallbackURL (or the result queue) later.
type Request struct {
	ApplicationID  string `json:"application_id"`
	JobID          string `json:"job_id"`
	ResumeRef      string `json:"resume_ref"`
	VideoRef       string `json:"video_ref"`
	ResumeURL      string `json:"resume_url,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
	JobDescription string `json:"job_description"`
	CallbackURL    string `json:"callback_url,omitempty"`
}

// Dispatcher delivers analysis requests to the external analyzers.
type Dispatcher interface {
	Dispatch(ctx context.Context, r Request) error
}

// HTTPDispatcher posts each request to every configured analyzer endpoint.
type HTTPDispatcher struct {
	endpoints []string
	token     string
	client    *http.Client
}

func NewHTTPDispatcher(endpoints []string, token string, timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDispatcher{
		endpoints: endpoints,
		token:     token,
		client:    &http.Client{Timeout: timeout},
	}
}

// Dispatch fails if any endpoint rejects the request. Analyzers must accept
// repeated requests for the same application because the task is retried.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, r Request) error {
	if len(d.endpoints) == 0 {
		return errors.New("no analyzer endpoints configured")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode analysis request: %w", err)
	}

	var errs []error
	for _, ep := range d.endpoints {
		if err := d.post(ctx, ep, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ep, err))
		}
	}
	return errors.Join(errs...)
}

func (d *HTTPDispatcher) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set(TokenHeader, d.token)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Publisher is the part of *amqp.Channel the dispatcher uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes requests as persistent messages on a durable
// queue through the default exchange.
type AMQPDispatcher struct {
	pub   Publisher
	queue string
}

func NewAMQPDispatcher(pub Publisher, queue string) *AMQPDispatcher {
	return &AMQPDispatcher{pub: pub, queue: queue}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, r Request) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode analysis request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return d.pub.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    r.ApplicationID,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// DialAMQP connects to the broker and declares the given durable queues.
func DialAMQP(url string, queues ...string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	for _, q := range queues {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	logger.Info("connected to rabbitmq", "queues", queues)
	return conn, ch, nil
}
