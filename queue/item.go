package queue

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/jonwraymond/netguard/transport"
)

// Priority selects the band an item is queued in.
type Priority int

const (
	// PriorityNormal appends to the tail. It is the zero value.
	PriorityNormal Priority = iota
	// PriorityHigh inserts at the head.
	PriorityHigh
	// PriorityLow appends to the tail and is evicted first.
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// ParsePriority parses "high", "normal" or "low". The empty string is normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh, nil
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityNormal, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// rank orders bands for eviction; lower ranks are evicted first.
func (p Priority) rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	default:
		return 1
	}
}

// Item is a deferred request.
type Item struct {
	ID         string
	Request    transport.Request
	RetryCount int
	MaxRetries int
	EnqueuedAt time.Time
	Priority   Priority
	Metadata   map[string]any

	seq uint64
}

func (it *Item) clone() Item {
	c := *it
	c.Request = it.Request.Clone()
	c.Metadata = maps.Clone(it.Metadata)
	return c
}

// EnqueueOptions controls how an item is queued.
type EnqueueOptions struct {
	Priority Priority
	Metadata map[string]any

	// MaxRetries overrides the policy limit for this item. Zero uses the
	// policy; a negative value disables retries.
	MaxRetries int
}

// OutcomeKind is the terminal state of an item.
type OutcomeKind int

const (
	// Delivered means an attempt received a 2xx response.
	Delivered OutcomeKind = iota
	// Dropped means the item failed permanently or ran out of retries.
	Dropped
	// Evicted means the item was pushed out by overflow before delivery.
	Evicted
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	case Evicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Outcome reports how an item left the queue.
type Outcome struct {
	Item     Item
	Kind     OutcomeKind
	Response *transport.Response // last response, if any
	Err      error               // cause of a drop
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	QueueSize       int   `json:"queue_size"`
	ProcessingCount int   `json:"processing_count"`
	Waiting         int   `json:"waiting"` // items in backoff before re-queueing
	Delivered       int64 `json:"delivered"`
	Retried         int64 `json:"retried"`
	Dropped         int64 `json:"dropped"`
	Evicted         int64 `json:"evicted"`
}
