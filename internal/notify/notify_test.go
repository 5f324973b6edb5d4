package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FairForge/warden/internal/events"
)

func TestNewChannel_Factory(t *testing.T) {
	ch, err := NewChannel(KindWebhook)
	require.NoError(t, err)
	assert.IsType(t, &WebhookChannel{}, ch)

	ch, err = NewChannel(KindEmail)
	require.NoError(t, err)
	assert.IsType(t, &EmailChannel{}, ch)

	_, err = NewChannel("pigeon")
	assert.ErrorIs(t, err, ErrUnknownChannelKind)
}

func TestWebhookChannel_Send(t *testing.T) {
	var mu sync.Mutex
	var got Notification
	var signature string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		signature = r.Header.Get("X-Warden-Signature")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel()
	require.NoError(t, ch.Configure(map[string]string{
		"url":    srv.URL,
		"secret": "hunter2",
	}))

	n := Notification{
		Subject:   "failover.completed db",
		Severity:  SeverityCritical,
		Service:   "db",
		Timestamp: time.Now(),
	}
	require.NoError(t, ch.Send(context.Background(), n))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "db", got.Service)
	assert.NotEmpty(t, signature)
}

func TestWebhookChannel_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewWebhookChannel()
	require.NoError(t, ch.Configure(map[string]string{"url": srv.URL}))

	err := ch.Send(context.Background(), Notification{Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestWebhookChannel_Configure(t *testing.T) {
	ch := NewWebhookChannel()
	assert.Error(t, ch.Configure(map[string]string{}))
	assert.Error(t, ch.Configure(map[string]string{"url": "not a url"}))
	assert.Error(t, ch.Send(context.Background(), Notification{}))

	require.NoError(t, ch.Configure(map[string]string{
		"url":                  "https://hooks.example.com/warden",
		"header.Authorization": "Bearer token",
	}))
	assert.Equal(t, "Bearer token", ch.headers["Authorization"])
}

func TestWebhookChannel_TestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel()
	require.NoError(t, ch.Configure(map[string]string{"url": srv.URL}))
	assert.NoError(t, ch.TestConnection(context.Background()))
}

func TestEmailChannel_Configure(t *testing.T) {
	ch := NewEmailChannel()

	assert.Error(t, ch.Configure(map[string]string{}))
	assert.Error(t, ch.Configure(map[string]string{"host": "smtp.example.com"}))
	assert.Error(t, ch.Configure(map[string]string{
		"host": "smtp.example.com", "from": "warden@example.com",
	}))

	require.NoError(t, ch.Configure(map[string]string{
		"host": "smtp.example.com",
		"from": "warden@example.com",
		"to":   "ops@example.com, oncall@example.com",
	}))
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, ch.to)
	assert.Equal(t, "587", ch.port)
}

func TestEmailChannel_Send(t *testing.T) {
	var mu sync.Mutex
	var gotFrom string
	var gotTo []string
	var gotMsg string

	ch := NewEmailChannel()
	ch.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		mu.Lock()
		defer mu.Unlock()
		gotFrom = from
		gotTo = to
		gotMsg = string(msg)
		return nil
	}
	require.NoError(t, ch.Configure(map[string]string{
		"host": "smtp.example.com",
		"from": "warden@example.com",
		"to":   "ops@example.com",
	}))

	err := ch.Send(context.Background(), Notification{
		Subject:  "failover completed",
		Body:     "db moved to s1",
		Severity: SeverityCritical,
		Service:  "db",
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "warden@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [CRITICAL] failover completed")
	assert.Contains(t, gotMsg, "db moved to s1")
}

func TestDispatcher_FanOut(t *testing.T) {
	var mu sync.Mutex
	hits := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	first := NewWebhookChannel()
	require.NoError(t, first.Configure(map[string]string{"url": srv.URL}))
	second := NewWebhookChannel()
	require.NoError(t, second.Configure(map[string]string{"url": srv.URL}))

	d := NewDispatcher(zap.NewNop())
	d.AddChannel("a", first)
	d.AddChannel("b", second)

	d.Dispatch(context.Background(), Notification{Subject: "test"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, hits)
}

func TestDispatcher_SubscribeTo(t *testing.T) {
	received := make(chan Notification, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		_ = json.NewDecoder(r.Body).Decode(&n)
		received <- n
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel()
	require.NoError(t, ch.Configure(map[string]string{"url": srv.URL}))

	d := NewDispatcher(zap.NewNop())
	d.AddChannel("hook", ch)

	bus := events.NewSimpleEventBus()
	require.NoError(t, d.SubscribeTo(bus, "failover.*"))

	e := events.NewEvent(events.FailoverCompleted, "db", "")
	e.Message = "failover completed"
	require.NoError(t, bus.Publish(context.Background(), e))

	select {
	case n := <-received:
		assert.Equal(t, "db", n.Service)
		assert.Equal(t, SeverityCritical, n.Severity)
	case <-time.After(time.Second):
		t.Fatal("notification never delivered")
	}
}
