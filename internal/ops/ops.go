// Package ops implements the sentence store operations shared by the CLI,
// the MCP server, the REST server and the local gateway.
package ops

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/tagline/internal/errors"
)

// ParseID parses a sentence id from user input.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewInvalidRequest("id is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid id %q", s))
	}
	return id, ValidateID(id)
}

// ValidateID rejects ids the store never assigns.
func ValidateID(id int64) error {
	if id <= 0 {
		return errors.NewInvalidRequest("id must be a positive integer")
	}
	return nil
}
