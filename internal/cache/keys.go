package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func SessionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func JobKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}
