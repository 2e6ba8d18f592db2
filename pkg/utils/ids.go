// Package utils holds small shared validation helpers.
package utils

import (
	"errors"
	"strings"
)

// ValidateNodeID validates a group or server identifier before it enters
// the key space. Ids are embedded in colon-delimited storage keys, so a
// colon or glob character inside one would collide with another pair's
// log.
func ValidateNodeID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return errors.New("id is required and must be a non-empty string")
	}
	if trimmed != id {
		return errors.New("id must not have leading or trailing whitespace")
	}
	if strings.ContainsAny(id, ":*?[") {
		return errors.New("id must not contain ':' or glob characters")
	}
	return nil
}
