package profile

// observedDistinct — число различных значений атрибута, видимых при обновлении.
//
// Сейчас множество строится только из значения текущего события, поэтому результат
// всегда 1 (поведение унаследовано и сохраняется сознательно). Если подтвердится,
// что имелись в виду различные значения по всей истории, достаточно заменить тело
// на подсчёт по истории аккаунта.
func observedDistinct(value string) int {
	seen := map[string]struct{}{value: {}}
	return len(seen)
}
