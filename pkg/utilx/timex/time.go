package timex

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ParseTimestamp parses s as a millisecond unix timestamp, or with one of the provided layouts.
// A zero timestamp is rejected.
func ParseTimestamp(s string, layouts ...string) (time.Time, error) {
	if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
		if millis == 0 {
			return time.Time{}, errors.New("timestamp must not be zero")
		}

		return time.UnixMilli(millis).UTC(), nil
	}

	errParseTime := errors.Errorf("%q is neither a millisecond timestamp nor matches any layout", s)

	for _, layout := range layouts {
		parsedTime, err := time.Parse(layout, s)
		if err == nil {
			return parsedTime.UTC(), nil
		}

		errParseTime = errors.WithMessagef(err, "unable to parse time string %q with provided layouts", s)
	}

	return time.Time{}, errParseTime
}

// ToMillis returns t as a millisecond unix timestamp string.
func ToMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
