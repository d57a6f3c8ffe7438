package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID returns prefix_<uuid without dashes>.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func GenerateEventID() string {
	return uuid.NewString()
}

func GenerateUserID() string {
	return GenerateID("user")
}

func GenerateStreamID() string {
	return GenerateID("stream")
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

// GenerateTraceID generates a unique trace ID
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// KitchenChannel names the channel a host broadcasts on.
func KitchenChannel(handle string, at time.Time) string {
	if handle == "" {
		handle = "user"
	}
	return fmt.Sprintf("%s-kitchen-%d", handle, at.UnixMilli())
}

// ViewerUID is the session uid of an audience member.
func ViewerUID(at time.Time) string {
	return fmt.Sprintf("user_%d", at.UnixMilli())
}
