// Package coordinator provides an HTTP client for the remote worker-id
// coordinator. The coordinator is advisory: it helps hosts that share an
// identity avoid picking the same worker id, but never grants ownership.
package coordinator

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultBaseURL is the coordinator address used when none is configured.
const DefaultBaseURL = "http://id.worker.server:18001"

// FormatIDs renders worker ids as the comma separated list used on the wire.
func FormatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// ParseIDs parses a comma separated list of worker ids. Blank input yields
// an empty slice; surrounding whitespace is ignored.
func ParseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int64{}, nil
	}

	fields := strings.Split(s, ",")
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedResponse, f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
