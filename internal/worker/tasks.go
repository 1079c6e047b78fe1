package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/jimdaga/localbrief/internal/events"
)

// Task type constants
const (
	TaskGenerateBriefing = "briefing:generate"
	TaskDiscoverEvents   = "events:discover"
	TaskDeactivateEvents = "events:deactivate"
)

// GeneratePayload is the briefing:generate payload.
type GeneratePayload struct {
	SnapshotID string `json:"snapshot_id"`
}

// DiscoverPayload is the events:discover payload.
type DiscoverPayload struct {
	City      string  `json:"city"`
	State     string  `json:"state"`
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Date      string  `json:"date"`
}

// Location converts the payload back into a discovery location.
func (p DiscoverPayload) Location() events.Location {
	return events.Location{
		City:      p.City,
		State:     p.State,
		Timezone:  p.Timezone,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Date:      p.Date,
	}
}

// NewGenerateTask builds a briefing:generate task. Duplicates for the same
// snapshot are rejected while one is pending.
func NewGenerateTask(snapshotID string) (*asynq.Task, error) {
	if snapshotID == "" {
		return nil, errors.New("snapshot id is required")
	}
	payload, err := json.Marshal(GeneratePayload{SnapshotID: snapshotID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskGenerateBriefing,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(2*time.Minute),
	), nil
}

// NewDiscoverTask builds an events:discover task for one place and date.
func NewDiscoverTask(loc events.Location) (*asynq.Task, error) {
	if loc.City == "" || loc.Date == "" {
		return nil, errors.New("discovery needs a city and a date")
	}
	payload, err := json.Marshal(DiscoverPayload{
		City:      loc.City,
		State:     loc.State,
		Timezone:  loc.Timezone,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Date:      loc.Date,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskDiscoverEvents,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(30*time.Minute),
	), nil
}

// Client enqueues background tasks.
type Client struct {
	client *asynq.Client
}

// NewClient creates a Client connected to redisURL.
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// Close closes the Asynq client connection gracefully.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueGenerate queues generation for a snapshot. A task already pending for
// the same snapshot counts as success.
func (c *Client) EnqueueGenerate(ctx context.Context, snapshotID string) error {
	task, err := NewGenerateTask(snapshotID)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueDiscovery queues an events refresh for a location.
func (c *Client) EnqueueDiscovery(ctx context.Context, loc events.Location) error {
	task, err := NewDiscoverTask(loc)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	return nil
}
