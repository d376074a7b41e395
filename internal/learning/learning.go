// Package learning binds the generic entity store to the studio's resource
// types: generated articles, plans, chat sessions and notes.
package learning

import (
	"fmt"
	"strings"
	"time"

	"github.com/ssfxx0923/Learning-Studio/internal/entitystore"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(raw string) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	return time.Time{}
}

// normalizeMessage stamps a missing timestamp and checks the role.
func normalizeMessage(msg Message, now time.Time) (Message, error) {
	msg.Role = strings.TrimSpace(msg.Role)
	if msg.Role != "user" && msg.Role != "assistant" {
		return Message{}, fmt.Errorf("%w: message role must be user or assistant", entitystore.ErrInvalidInput)
	}
	if strings.TrimSpace(msg.Timestamp) == "" {
		msg.Timestamp = formatTime(now)
	}
	return msg, nil
}

func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
