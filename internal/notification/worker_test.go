package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"campus-gate-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

const subscriptionQuery = `SELECT \* FROM "push_subscriptions" WHERE identity_id = \$1`

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(db), &webpush.Options{})

	assert.True(t, wp.Dispatch(Job{IdentityID: "u-1"}))

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "u-1", job.IdentityID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchDropsWhenFull(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(db), &webpush.Options{})

	for i := 0; i < cap(wp.jobs); i++ {
		require.True(t, wp.Dispatch(Job{IdentityID: "u-1"}))
	}

	done := make(chan bool)
	go func() { done <- wp.Dispatch(Job{IdentityID: "u-2"}) }()
	select {
	case queued := <-done:
		assert.False(t, queued)
	case <-time.After(1 * time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, store.NewGormStore(gormDB), &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				assert.JSONEq(t, `{"title":"Vehicle entered","body":"KA01AB1234 entered at GATE-1","recordId":"r-1","eventType":"entry"}`, string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "identity_id", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", "u-1", time.Now()))

		wp.Dispatch(Job{IdentityID: "u-1", Title: "Vehicle entered", Body: "KA01AB1234 entered at GATE-1", RecordID: "r-1", EventType: "entry"})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs("u-2").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "identity_id", "created_at"}).
				AddRow("https://example.com/expired", "k", "a", "u-2", time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE endpoint = \$1 AND identity_id = \$2`).
			WithArgs("https://example.com/expired", "u-2").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(Job{IdentityID: "u-2", Title: "Vehicle exited"})

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("no subscriptions, nothing sent", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("unexpected send")
				return nil, nil
			},
		}

		mock.ExpectQuery(subscriptionQuery).
			WithArgs("u-3").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "identity_id", "created_at"}))

		wp.Dispatch(Job{IdentityID: "u-3"})

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})
}
