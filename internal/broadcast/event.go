package broadcast

import (
	"fmt"
	"strings"
	"time"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/model"
)

// EventType names what happened.
type EventType string

const (
	EventEntry   EventType = "entry"
	EventExit    EventType = "exit"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
	EventStats   EventType = "stats"
	EventNotice  EventType = "notice"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type    EventType            `json:"eventType"`
	Record  *model.VehicleRecord `json:"record,omitempty"`
	Stats   any                  `json:"stats,omitempty"`
	Message string               `json:"message,omitempty"`
	At      time.Time            `json:"at"`
}

// Topic is a broadcast scope.
type Topic string

// Global reaches every connected dashboard.
const Global Topic = "global"

const userPrefix = "user:"

// UserTopic returns the private topic of an identity.
func UserTopic(identityID string) Topic {
	return Topic(userPrefix + identityID)
}

// Owner returns the identity a private topic belongs to. It returns false
// for the global topic.
func (t Topic) Owner() (string, bool) {
	if !strings.HasPrefix(string(t), userPrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(t), userPrefix), true
}

// ParseTopic validates a topic name received from a client. An empty name
// means the global topic.
func ParseTopic(s string) (Topic, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == string(Global):
		return Global, nil
	case strings.HasPrefix(s, userPrefix) && len(s) > len(userPrefix):
		return Topic(s), nil
	default:
		return "", apperr.InvalidInput(fmt.Sprintf("unknown topic %q", s), map[string]string{"topic": "must be global or user:<id>"})
	}
}
