package parsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrTempBanDetails is wrapped by every temporary-ban parse failure.
var ErrTempBanDetails = fmt.Errorf("invalid temporary ban details")

// allowedDurations contains the supported interval keywords mapped to their
// duration multiple.
var allowedDurations = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

// The change form is attempted first; a ban length edit reports its details
// as "Ban changed to <n> <interval>".
var tempBanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Ban changed to (\d+)\s+(\S+)`),
	regexp.MustCompile(`\A(\d+)\s+(\S+)`),
}

// ParseTemporaryBan parses the details part of a ban in the moderator log
// and returns the duration of the ban.
func ParseTemporaryBan(details string) (time.Duration, error) {
	for _, pattern := range tempBanPatterns {
		groups := pattern.FindStringSubmatch(details)
		if groups == nil {
			continue
		}

		count, err := strconv.ParseInt(groups[1], 10, 64)
		if err != nil {
			continue
		}
		multiple, ok := allowedDurations[groups[2]]
		if !ok {
			return 0, fmt.Errorf("%w: %s (unknown interval: %s)", ErrTempBanDetails, details, groups[2])
		}
		return time.Duration(count) * multiple, nil
	}
	return 0, fmt.Errorf("%w: %s (does not match any pattern)", ErrTempBanDetails, details)
}
