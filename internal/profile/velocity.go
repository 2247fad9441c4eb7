package profile

import (
	"time"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

const (
	Window24h = 24 * time.Hour
	Window7d  = 7 * 24 * time.Hour
)

// Velocity считает записи истории заданного типа, у которых от собственной метки
// до reference прошло не больше window. Записи "из будущего" (отрицательный интервал)
// тоже попадают в окно.
//
// Полный линейный проход по истории на каждое обновление. Для длинных историй
// его можно заменить на дек по аккаунту и типу, обрезаемый по 7-дневному окну,
// с тем же результатом.
func Velocity(history []domain.HistoryEntry, t domain.EventType, reference time.Time, window time.Duration) int {
	count := 0
	for _, h := range history {
		if h.EventType != t {
			continue
		}
		if reference.Sub(h.Timestamp) <= window {
			count++
		}
	}
	return count
}

// velocities возвращает пару (24h, 7d) за один проход.
func velocities(history []domain.HistoryEntry, t domain.EventType, reference time.Time) (day, week int) {
	for _, h := range history {
		if h.EventType != t {
			continue
		}
		elapsed := reference.Sub(h.Timestamp)
		if elapsed <= Window24h {
			day++
		}
		if elapsed <= Window7d {
			week++
		}
	}
	return day, week
}
