package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"campus-gate-backend/internal/model"
	"campus-gate-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job is a notification addressed to every browser an identity registered.
type Job struct {
	IdentityID string
	Title      string
	Body       string
	RecordID   string
	EventType  string
}

// payload is what the service worker receives.
type payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	RecordID  string `json:"recordId,omitempty"`
	EventType string `json:"eventType,omitempty"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool. The job queue holds a few jobs
// per worker; Dispatch drops jobs when it is full.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*16),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// WithSender replaces the sender used to deliver notifications.
func (wp *WorkerPool) WithSender(s NotificationSender) *WorkerPool {
	wp.sender = s
	return wp
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.sendNotificationsFor(ctx, job)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job without blocking. It reports false if the queue
// was full and the job was dropped.
func (wp *WorkerPool) Dispatch(job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		log.Printf("Notification queue full, dropping %s notification for %s", job.EventType, job.IdentityID)
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// sendNotificationsFor fetches the identity's subscriptions and notifies each one.
func (wp *WorkerPool) sendNotificationsFor(ctx context.Context, job Job) {
	subscriptions, err := wp.store.PushSubscriptionsFor(ctx, job.IdentityID)
	if err != nil {
		log.Printf("Error fetching subscriptions for %s: %v", job.IdentityID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(payload{Title: job.Title, Body: job.Body, RecordID: job.RecordID, EventType: job.EventType})
	if err != nil {
		log.Printf("Error encoding notification for %s: %v", job.IdentityID, err)
		return
	}

	log.Printf("Sending %d notifications to %s", len(subscriptions), job.IdentityID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, body)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeletePushSubscription(ctx, sub.Endpoint, sub.IdentityID); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
