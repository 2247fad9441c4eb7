package profile

import (
	"strings"
	"time"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

// Допустимые форматы: ISO-8601 с зоной и без (наивное время трактуется как UTC),
// а также вариант с пробелом вместо 'T', который пишут CSV-выгрузки.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp разбирает метку времени события и приводит её к UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, &domain.ValidationError{Field: "timestamp", Reason: "is required"}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &domain.ValidationError{Field: "timestamp", Value: raw, Reason: "not a valid ISO-8601 instant"}
}
