package timeutils

import (
	"encoding"
	"fmt"
	"time"
)

// ParseableDuration represents a time.Duration that implements
// encoding.TextUnmarshaler and encoding.TextMarshaler, so it can be read from
// configuration files as "10s", "100m", etc.
type ParseableDuration time.Duration

var _ encoding.TextUnmarshaler = (*ParseableDuration)(nil)
var _ encoding.TextMarshaler = ParseableDuration(0)

// UnmarshalText allows us a convenient way to unmarshal durations.
func (d *ParseableDuration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err == nil {
		*d = ParseableDuration(dur)
	}
	return err
}

// MarshalText renders the duration in time.Duration's string format.
func (d ParseableDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration is a convenience method for converting this parseable duration into
// a standard time.Duration instance.
func (d ParseableDuration) Duration() time.Duration {
	return time.Duration(d)
}

// FormatHMS renders the given duration as zero-padded hours, minutes and
// seconds, e.g. "01:02:03". Fractional seconds are truncated and hours are
// not wrapped at 24.
func FormatHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
