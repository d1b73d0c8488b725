package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"survey-public-api/internal/core/domain"
	"survey-public-api/internal/core/ports"
	"survey-public-api/internal/observability"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Outbound webhook headers.
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookID        = "X-Webhook-Id"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)

const (
	maxResponseDrain   = 64 << 10
	recordWriteTimeout = 5 * time.Second
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DispatcherConfig tunes delivery and the worker pool.
type DispatcherConfig struct {
	Timeout     time.Duration // per attempt
	TestTimeout time.Duration // whole synchronous test delivery, retries included
	MaxAttempts int
	BaseBackoff time.Duration // wait before attempt n is BaseBackoff * 2^(n-2)
	Workers     int
	QueueSize   int
	UserAgent   string
}

type dispatchJob struct {
	ownerID string
	event   domain.WebhookEvent
}

// WebhookDispatcher implements ports.WebhookDispatcher.
// Dispatch only enqueues; workers deliver under the dispatcher's own context,
// so a finished or cancelled request never aborts a delivery.
type WebhookDispatcher struct {
	cfg     DispatcherConfig
	subs    ports.WebhookRepository
	records ports.DeliveryRepository
	encSvc  ports.EncryptionService
	sigSvc  ports.SignatureService
	client  HTTPClient
	metrics *observability.Metrics
	log     zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	queue     chan dispatchJob
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewWebhookDispatcher creates a dispatcher. Call Start to run the workers.
func NewWebhookDispatcher(
	cfg DispatcherConfig,
	subs ports.WebhookRepository,
	records ports.DeliveryRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	client HTTPClient,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *WebhookDispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = 25 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "SurveyAPI-Webhooks/1.0"
	}
	client = withoutRedirects(client)

	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookDispatcher{
		cfg:     cfg,
		subs:    subs,
		records: records,
		encSvc:  encSvc,
		sigSvc:  sigSvc,
		client:  client,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		sleep:   sleepContext,
		newID:   func() string { return ulid.Make().String() },
		queue:   make(chan dispatchJob, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool. Calling it again has no effect.
func (d *WebhookDispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
		d.log.Info().Int("workers", d.cfg.Workers).Int("queue_size", d.cfg.QueueSize).Msg("webhook dispatcher started")
	})
}

// Shutdown stops accepting events and waits for queued jobs to finish.
// When ctx expires first, in-flight deliveries are cancelled and ctx.Err is returned.
func (d *WebhookDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Dispatch enqueues event for the owner's subscriptions and returns immediately.
// When the queue is full the event is dropped and logged.
func (d *WebhookDispatcher) Dispatch(ownerID string, event domain.WebhookEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn().Str("owner_id", ownerID).Str("event", string(event.Type)).Msg("webhook: dispatcher closed, event dropped")
		d.metrics.IncDropped()
		return
	}

	select {
	case d.queue <- dispatchJob{ownerID: ownerID, event: event}:
		d.metrics.SetQueueDepth(len(d.queue))
	default:
		d.log.Error().Str("owner_id", ownerID).Str("event", string(event.Type)).Msg("webhook: queue full, event dropped")
		d.metrics.IncDropped()
	}
}

// TestDelivery sends a webhook.test event to sub and waits for the outcome.
// The whole attempt cycle is bounded by TestTimeout so the caller's request
// finishes inside the server's write timeout.
func (d *WebhookDispatcher) TestDelivery(ctx context.Context, sub *domain.WebhookSubscription) (*domain.DeliveryRecord, error) {
	event, err := domain.NewWebhookEvent(domain.EventWebhookTest, d.now(), map[string]string{
		"webhook_id": sub.ID.String(),
		"message":    "This is a test delivery.",
	})
	if err != nil {
		return nil, fmt.Errorf("building test event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.TestTimeout)
	defer cancel()

	rec := d.deliver(ctx, sub, event)
	d.saveRecord(ctx, rec)
	return rec, nil
}

func (d *WebhookDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		d.process(d.ctx, job)
	}
}

// process fans one event out to every matching subscription concurrently.
func (d *WebhookDispatcher) process(ctx context.Context, job dispatchJob) {
	subs, err := d.subs.ListActiveForEvent(ctx, job.ownerID, job.event.Type)
	if err != nil {
		d.log.Error().Err(err).Str("owner_id", job.ownerID).Str("event", string(job.event.Type)).Msg("webhook: listing subscriptions failed")
		return
	}

	var wg sync.WaitGroup
	for i := range subs {
		sub := &subs[i]
		if !sub.Accepts(job.event.Type) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := d.deliver(ctx, sub, job.event)
			d.saveRecord(ctx, rec)
		}()
	}
	wg.Wait()
}

// deliver runs the full attempt cycle for one subscription and returns its
// terminal outcome.
func (d *WebhookDispatcher) deliver(ctx context.Context, sub *domain.WebhookSubscription, event domain.WebhookEvent) *domain.DeliveryRecord {
	payload := domain.DeliveryPayload{
		ID:        d.newID(),
		Type:      event.Type,
		CreatedAt: event.Timestamp,
		Data:      event.Data,
	}
	if len(payload.Data) == 0 {
		payload.Data = json.RawMessage("{}")
	}
	rec := &domain.DeliveryRecord{
		ID:          d.newID(),
		WebhookID:   sub.ID,
		PayloadID:   payload.ID,
		EventType:   event.Type,
		AttemptedAt: d.now().UTC(),
	}
	log := d.log.With().
		Str("webhook_id", sub.ID.String()).
		Str("payload_id", payload.ID).
		Str("event", string(event.Type)).
		Logger()

	body, err := json.Marshal(payload)
	if err != nil {
		return d.finish(rec, fmt.Errorf("marshaling payload: %w", err), log)
	}

	secret, err := d.encSvc.Decrypt(sub.SecretEnc)
	if err != nil {
		return d.finish(rec, fmt.Errorf("decrypting signing secret: %w", err), log)
	}
	signature := d.sigSvc.Sign(secret, body)

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := d.sleep(ctx, d.backoff(attempt)); err != nil {
				lastErr = fmt.Errorf("retry aborted: %w", err)
				break
			}
		}
		rec.Attempts = attempt

		status, err := d.attempt(ctx, sub.URL, body, payload.ID, signature)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("webhook: delivery failed")
			continue
		}
		rec.StatusCode = &status

		switch {
		case status >= 200 && status < 300:
			return d.finish(rec, nil, log)
		case status >= 500:
			lastErr = fmt.Errorf("receiver returned status %d", status)
			log.Warn().Int("attempt", attempt).Int("status", status).Msg("webhook: server error, retrying")
			continue
		default:
			return d.finish(rec, fmt.Errorf("receiver returned status %d", status), log)
		}
	}

	return d.finish(rec, lastErr, log)
}

func (d *WebhookDispatcher) finish(rec *domain.DeliveryRecord, err error, log zerolog.Logger) *domain.DeliveryRecord {
	rec.Success = err == nil
	if err != nil {
		msg := err.Error()
		rec.Error = &msg
		log.Error().Err(err).Int("attempts", rec.Attempts).Msg("webhook: delivery failed permanently")
	} else {
		log.Info().Int("attempts", rec.Attempts).Int("status", *rec.StatusCode).Msg("webhook: delivered")
	}
	d.metrics.ObserveDelivery(string(rec.EventType), rec.Success, rec.Attempts)
	return rec
}

func (d *WebhookDispatcher) attempt(ctx context.Context, url string, body []byte, payloadID, signature string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set(HeaderWebhookSignature, signature)
	req.Header.Set(HeaderWebhookID, payloadID)
	req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(d.now().Unix(), 10))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	return resp.StatusCode, nil
}

// backoff returns the wait before the given attempt: base, 2*base, 4*base, ...
func (d *WebhookDispatcher) backoff(attempt int) time.Duration {
	return d.cfg.BaseBackoff << (attempt - 2)
}

// saveRecord writes the record even if ctx was cancelled; failures are logged only.
func (d *WebhookDispatcher) saveRecord(ctx context.Context, rec *domain.DeliveryRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordWriteTimeout)
	defer cancel()

	if err := d.records.Create(ctx, rec); err != nil {
		d.log.Error().Err(err).Str("webhook_id", rec.WebhookID.String()).Str("payload_id", rec.PayloadID).Msg("webhook: saving delivery record failed")
	}
}

// withoutRedirects makes 3xx responses terminal. A redirect target never
// receives the signed payload; the 3xx status is the attempt's outcome.
func withoutRedirects(client HTTPClient) HTTPClient {
	switch c := client.(type) {
	case nil:
		return &http.Client{CheckRedirect: stopRedirect}
	case *http.Client:
		if c == nil {
			return &http.Client{CheckRedirect: stopRedirect}
		}
		if c.CheckRedirect == nil {
			cp := *c
			cp.CheckRedirect = stopRedirect
			return &cp
		}
	}
	return client
}

func stopRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
