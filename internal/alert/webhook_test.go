package alert

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type webhookSink struct {
	mu         sync.Mutex
	failFirst  int
	calls      int
	bodies     [][]byte
	signatures []string
}

func (s *webhookSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFirst {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	s.bodies = append(s.bodies, body)
	s.signatures = append(s.signatures, r.Header.Get(HeaderWebhookSignature))
	w.WriteHeader(http.StatusNoContent)
}

func newTestWebhook(t *testing.T, sink *webhookSink, cfg WebhookConfig) *WebhookPublisher {
	t.Helper()
	srv := httptest.NewServer(sink)
	t.Cleanup(srv.Close)

	cfg.URL = srv.URL
	p := NewWebhookPublisher(cfg)
	p.logger = zaptest.NewLogger(t)
	p.backoff = func(int) time.Duration { return 0 }
	return p
}

func TestWebhookPublisher_FiltersAndSigns(t *testing.T) {
	sink := &webhookSink{}
	p := newTestWebhook(t, sink, WebhookConfig{Secret: "s3cret", MinSeverity: SeverityHigh})

	p.Publish(&Alert{ID: "a-low", Severity: SeverityLow, Type: TypeInvoiceDueSoon})
	p.Publish(&Alert{ID: "a-crit", Severity: SeverityCritical, Type: TypeInvoiceOverdue})
	p.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.bodies, 1)

	var msg Message
	require.NoError(t, json.Unmarshal(sink.bodies[0], &msg))
	assert.Equal(t, EventAlertCreated, msg.Event)
	assert.Equal(t, "a-crit", msg.Alert.ID)
	assert.Equal(t, "sha256="+Sign("s3cret", sink.bodies[0]), sink.signatures[0])
}

func TestWebhookPublisher_RetriesUntilSuccess(t *testing.T) {
	sink := &webhookSink{failFirst: 2}
	p := newTestWebhook(t, sink, WebhookConfig{MaxRetry: 3})

	p.Publish(&Alert{ID: "a-1", Severity: SeverityMedium})
	p.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 3, sink.calls)
	require.Len(t, sink.bodies, 1)
	assert.Empty(t, sink.signatures[0], "no secret, no signature")
}

func TestWebhookPublisher_GivesUpAfterMaxRetry(t *testing.T) {
	sink := &webhookSink{failFirst: 10}
	p := newTestWebhook(t, sink, WebhookConfig{MaxRetry: 1})

	p.Publish(&Alert{ID: "a-1", Severity: SeverityMedium})
	p.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 2, sink.calls)
	assert.Empty(t, sink.bodies)
}

func TestWebhookPublisher_PublishAfterCloseIsDropped(t *testing.T) {
	sink := &webhookSink{}
	p := newTestWebhook(t, sink, WebhookConfig{})

	p.Publish(&Alert{ID: "a-1", Severity: SeverityHigh})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotPanics(t, func() { p.Publish(&Alert{ID: "a-race", Severity: SeverityHigh}) })
		}()
	}
	p.Close()
	wg.Wait()

	sink.mu.Lock()
	delivered := sink.calls
	sink.mu.Unlock()

	require.NotPanics(t, func() { p.Publish(&Alert{ID: "a-late", Severity: SeverityCritical}) })
	p.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, delivered, sink.calls)
	assert.GreaterOrEqual(t, sink.calls, 1)
}

func TestPublishersFanOut(t *testing.T) {
	first, second := &recordingPublisher{}, &recordingPublisher{}
	var nilHub *Hub
	Publishers{first, nilHub, second}.Publish(&Alert{ID: "a-1", Severity: SeverityLow})

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}
