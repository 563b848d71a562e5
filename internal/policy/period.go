package policy

import (
	"fmt"
	"strconv"
)

// ParsePeriod converts an activity period token into seconds. The token is
// either a plain number of seconds or a positive integer with an s/m/h/d
// suffix, e.g. "90", "5m", "3h", "2d".
func ParsePeriod(token string) (int64, error) {
	if token == "" {
		return 0, fmt.Errorf("empty activity period")
	}

	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative activity period %q", token)
		}
		return n, nil
	}

	var multiplier int64
	switch token[len(token)-1] {
	case 's':
		multiplier = 1
	case 'm':
		multiplier = 60
	case 'h':
		multiplier = 60 * 60
	case 'd':
		multiplier = 60 * 60 * 24
	default:
		return 0, fmt.Errorf("invalid activity period %q: unknown unit %q", token, token[len(token)-1:])
	}

	n, err := strconv.ParseInt(token[:len(token)-1], 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid activity period %q", token)
	}
	return n * multiplier, nil
}
