package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
	"ms-autobook/internal/sse"
)

var results = []models.ItemResult{
	{
		AutoBookID: "ab-1", UserID: "user-1", EventID: "ev-1", EventName: "Sunburn Goa",
		Outcome: models.OutcomeSuccess, Quantity: 2, SeatClass: models.SeatGeneral,
		TotalCost: decimal.NewFromInt(2000), Message: "Availability confirmed: 2 × 1000 = 2000 for 2 General ticket(s)",
	},
	{
		AutoBookID: "ab-2", UserID: "user-2", EventID: "ev-1", EventName: "Sunburn Goa",
		Outcome: models.OutcomeFailed, FailureReason: models.FailureBudgetExceeded, Quantity: 4,
		SeatClass: models.SeatVIP, TotalCost: decimal.NewFromInt(4000), Message: "Total cost 4 × 1000 = 4000 exceeds your budget of 3000",
	},
	{
		AutoBookID: "ab-3", UserID: "user-3", EventID: "ev-1", Outcome: models.OutcomeError,
		Message: "Could not save the booking result; it will be retried on the next pass",
	},
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, topic, key string, v interface{}) error {
	return m.Called(topic, key, v).Error(0)
}

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	closed    bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type notifierFunc func(ctx context.Context, results []models.ItemResult) error

func (f notifierFunc) Notify(ctx context.Context, results []models.ItemResult) error {
	return f(ctx, results)
}

func TestNewMessage(t *testing.T) {
	assert.Equal(t, "Tickets Available", NewMessage(results[0]).Title)

	failed := NewMessage(results[1])
	assert.Equal(t, "Budget Limit Exceeded", failed.Title)
	assert.Contains(t, failed.Description, "maximum budget")

	assert.Equal(t, "Processing Delayed", NewMessage(results[2]).Title)
}

func TestMultiJoinsErrors(t *testing.T) {
	first, second := errors.New("kafka down"), errors.New("amqp down")
	calls := 0
	m := Multi{
		notifierFunc(func(context.Context, []models.ItemResult) error { calls++; return first }),
		notifierFunc(func(context.Context, []models.ItemResult) error { calls++; return nil }),
		notifierFunc(func(context.Context, []models.ItemResult) error { calls++; return second }),
	}

	err := m.Notify(context.Background(), results)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestKafkaRoutesByOutcome(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("PublishJSON", "autobook-succeeded", "user-1", mock.AnythingOfType("notify.Message")).Return(nil).Once()
	pub.On("PublishJSON", "autobook-failed", "user-2", mock.AnythingOfType("notify.Message")).Return(nil).Once()

	k := Kafka{Publisher: pub, SucceededTopic: "autobook-succeeded", FailedTopic: "autobook-failed"}
	require.NoError(t, k.Notify(context.Background(), results))

	pub.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "PublishJSON", 2)
}

func TestRedisPublishesOnUserChannel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, UserChannel("user-2"))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, Redis{Client: client}.Notify(ctx, results))

	select {
	case msg := <-sub.Channel():
		var m Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &m))
		assert.Equal(t, "ab-2", m.AutoBookID)
		assert.Equal(t, models.FailureBudgetExceeded, m.FailureReason)
		assert.Equal(t, "Budget Limit Exceeded", m.Title)
	case <-time.After(time.Second):
		t.Fatal("no message on user channel")
	}
}

func TestRelayForwardsToLocalStreams(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter := sse.NewResultEmitter()
	stream := emitter.Subscribe(ctx, "user-1")

	relayDone := make(chan error, 1)
	go func() { relayDone <- Relay(ctx, client, emitter, logger.NewWithWriter(&bytes.Buffer{})) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumPat() > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, Redis{Client: client}.Notify(ctx, results[:1]))

	select {
	case r := <-stream:
		assert.Equal(t, "ab-1", r.AutoBookID)
		assert.True(t, r.TotalCost.Equal(decimal.NewFromInt(2000)))
	case <-time.After(time.Second):
		t.Fatal("relay did not forward the result")
	}

	cancel()
	select {
	case err := <-relayDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestEmailQueueEnqueuesDecidedResults(t *testing.T) {
	ch := &fakeChannel{}
	q := &EmailQueue{ch: ch, Queue: "autobook-emails"}

	require.NoError(t, q.Notify(context.Background(), results))

	require.Len(t, ch.published, 2)
	assert.Equal(t, []string{"autobook-emails", "autobook-emails"}, ch.keys)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, "ab-1", ch.published[0].MessageId)

	var job EmailJob
	require.NoError(t, json.Unmarshal(ch.published[1].Body, &job))
	assert.Equal(t, "autobook_failed", job.Template)
	assert.Equal(t, "user-2", job.UserID)
	assert.Equal(t, MaxEmailAttempts, job.MaxAttempts)
	assert.Equal(t, 0, job.Attempts)

	require.NoError(t, q.Close())
	assert.True(t, ch.closed)
}

func TestSSEEmitsLocally(t *testing.T) {
	emitter := sse.NewResultEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := emitter.Subscribe(ctx, "user-3")

	require.NoError(t, SSE{Emitter: emitter}.Notify(ctx, results))

	r := <-stream
	assert.Equal(t, models.OutcomeError, r.Outcome)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Log{Logger: logger.NewWithWriter(&buf)}.Notify(context.Background(), results))

	assert.Contains(t, buf.String(), "ab-2")
	assert.Contains(t, buf.String(), "exceeds your budget")
}
