package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// StatusEventMessage is the wire payload published for every application
// status transition. Old/new snapshots are JSON-encoded entity states.
type StatusEventMessage struct {
	ID            int       `json:"id"`
	ApplicationId int       `json:"application_id"`
	EventTime     time.Time `json:"event_time"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Action        string    `json:"action"`
	ActorId       int       `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	OldObj        []byte    `json:"old_obj"`
	NewObj        []byte    `json:"new_obj"`
	CorrelationId string    `json:"correlation_id"`
}

// NotificationMessage carries short-lived codes (OTP) and status notices to the
// mail/SMS consumer attached to the notifications topic. Delivery mechanics are
// the consumer's problem.
type NotificationMessage struct {
	Recipient string `json:"recipient"`
	Kind      string `json:"kind"`
	Code      string `json:"code,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

// GetPubSubClient returns a Pub/Sub client, initializing with retries if needed.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func GetPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	return getPubSubClient(ctx)
}

func getPubSubProjectID() string {
	// Prefer explicit override.
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	// Common fallback.
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var attempt int
	for {
		attempt++
		var opts []option.ClientOption
		if credJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
		}
		client, err := pubsub.NewClient(ctx, projectID, opts...)
		if err == nil {
			pubsubClientMu.Lock()
			pubsubClient = client
			pubsubClientMu.Unlock()
			return client, nil
		}
		if attempt >= 5 {
			return nil, fmt.Errorf("pubsub client init failed after %d attempts: %w", attempt, err)
		}
		log.Printf("pubsub client init failed (attempt=%d): %v; retrying", attempt, err)
		time.Sleep(time.Second * time.Duration(attempt))
	}
}

func statusEventsTopic() string {
	if v := os.Getenv("STATUS_EVENTS_TOPIC"); v != "" {
		return v
	}
	return "application-status-events"
}

func notificationsTopic() string {
	if v := os.Getenv("NOTIFICATIONS_TOPIC"); v != "" {
		return v
	}
	return "notifications"
}

// PublishStatusEventWithResult publishes one status-event message and returns
// the Pub/Sub message id. Ordering key is the application id so per-application
// event order survives the broker.
func PublishStatusEventWithResult(ctx context.Context, applicationId int, msg StatusEventMessage) (string, error) {
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	topic := client.Topic(statusEventsTopic())
	topic.EnableMessageOrdering = true
	defer topic.Stop()

	res := topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: fmt.Sprint(applicationId),
	})
	return res.Get(ctx)
}

// PublishNotification publishes a notification (OTP codes, status notices).
// Best effort from the caller's point of view; the caller decides whether a
// publish failure is fatal.
func PublishNotification(ctx context.Context, msg NotificationMessage) (string, error) {
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	topic := client.Topic(notificationsTopic())
	defer topic.Stop()

	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	return res.Get(ctx)
}
