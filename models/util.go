package models

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns "<prefix>:<uuid>", e.g. "tset:0b6f...".
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s:%s", prefix, uuid.New().String())
}
