package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// SettingsChannel carries settings-changed notifications between instances.
const SettingsChannel = "citadel:settings"

func AnalysisKey(sessionID string, id uuid.UUID) string {
	return fmt.Sprintf("analysis:%s:%s", sessionID, id)
}

func SessionIndexKey(sessionID string) string {
	return fmt.Sprintf("session:%s:analyses", sessionID)
}

func RateLimitKey(sessionID string) string {
	return fmt.Sprintf("ratelimit:%s", sessionID)
}
