// Package ingest — пакетная загрузка исторических журналов событий (CSV)
// и их реплей по аккаунтам в хронологическом порядке.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xela07ax/fraudprofile/internal/domain"
)

// Batch — четыре журнала событий, как их выгружает генератор датасета.
type Batch struct {
	Logins       []domain.LoginEvent
	Sessions     []domain.SessionEvent
	Transactions []domain.TransactionEvent
	FeatureUsage []domain.FeatureUsageEvent
}

// Len — общее число событий в пакете.
func (b Batch) Len() int {
	return len(b.Logins) + len(b.Sessions) + len(b.Transactions) + len(b.FeatureUsage)
}

// Paths — пути к CSV-файлам. Пустой путь означает "журнала нет".
type Paths struct {
	Logins       string
	Sessions     string
	Transactions string
	FeatureUsage string
}

// DatasetPaths — стандартная раскладка каталога датасета.
func DatasetPaths(dir string) Paths {
	return Paths{
		Logins:       filepath.Join(dir, "logins.csv"),
		Sessions:     filepath.Join(dir, "sessions.csv"),
		Transactions: filepath.Join(dir, "transactions.csv"),
		FeatureUsage: filepath.Join(dir, "feature_usage.csv"),
	}
}

// LoadBatch читает все указанные журналы. Отсутствующий файл не ошибка: журнал просто пуст.
func LoadBatch(p Paths) (Batch, error) {
	var (
		b   Batch
		err error
	)
	if b.Logins, err = loadFile(p.Logins, ReadLogins); err != nil {
		return Batch{}, err
	}
	if b.Sessions, err = loadFile(p.Sessions, ReadSessions); err != nil {
		return Batch{}, err
	}
	if b.Transactions, err = loadFile(p.Transactions, ReadTransactions); err != nil {
		return Batch{}, err
	}
	if b.FeatureUsage, err = loadFile(p.FeatureUsage, ReadFeatureUsage); err != nil {
		return Batch{}, err
	}
	return b, nil
}

func loadFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func ReadLogins(r io.Reader) ([]domain.LoginEvent, error) {
	return readRows(r, []string{"user_id", "timestamp"}, func(row record) (domain.LoginEvent, error) {
		return domain.LoginEvent{
			UserID:           row.get("user_id"),
			Timestamp:        row.get("timestamp"),
			DeviceType:       row.get("device_type"),
			IPAddress:        row.get("ip_address"),
			Geolocation:      row.get("geolocation"),
			OSBrowser:        row.get("os_browser"),
			ScreenResolution: row.get("screen_resolution"),
			LoginMethod:      row.get("login_method"),
			Channel:          row.get("channel"),
		}, nil
	})
}

func ReadSessions(r io.Reader) ([]domain.SessionEvent, error) {
	return readRows(r, []string{"user_id", "start_time", "session_duration"}, func(row record) (domain.SessionEvent, error) {
		d, err := row.float("session_duration", 0)
		if err != nil {
			return domain.SessionEvent{}, err
		}
		return domain.SessionEvent{
			UserID:          row.get("user_id"),
			StartTime:       row.get("start_time"),
			SessionDuration: d,
			SessionID:       row.get("session_id"),
			EndTime:         row.get("end_time"),
			PagesVisited:    parseList(row.get("pages_visited")),
		}, nil
	})
}

func ReadTransactions(r io.Reader) ([]domain.TransactionEvent, error) {
	return readRows(r, []string{"user_id", "timestamp", "amount"}, func(row record) (domain.TransactionEvent, error) {
		amount, err := row.float("amount", 0)
		if err != nil {
			return domain.TransactionEvent{}, err
		}
		merchant := row.get("merchant_id")
		if merchant == "" {
			// в выгрузке генератора мерчант называется recipient
			merchant = row.get("recipient")
		}
		return domain.TransactionEvent{
			UserID:          row.get("user_id"),
			Timestamp:       row.get("timestamp"),
			Amount:          amount,
			MerchantID:      merchant,
			TransactionID:   row.get("transaction_id"),
			TransactionType: row.get("transaction_type"),
			Recipient:       row.get("recipient"),
			Method:          row.get("method"),
		}, nil
	})
}

func ReadFeatureUsage(r io.Reader) ([]domain.FeatureUsageEvent, error) {
	return readRows(r, []string{"user_id", "timestamp", "feature_name"}, func(row record) (domain.FeatureUsageEvent, error) {
		freq, err := row.float("frequency", domain.DefaultFrequency)
		if err != nil {
			return domain.FeatureUsageEvent{}, err
		}
		return domain.FeatureUsageEvent{
			UserID:      row.get("user_id"),
			Timestamp:   row.get("timestamp"),
			FeatureName: row.get("feature_name"),
			Frequency:   freq,
		}, nil
	})
}

// record — строка CSV с доступом по имени колонки.
type record struct {
	line   int
	cols   map[string]int
	fields []string
}

func (r record) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// float разбирает число; пустая или отсутствующая колонка даёт def.
func (r record) float(name string, def float64) (float64, error) {
	s := r.get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Value: s, Reason: fmt.Sprintf("line %d: not a number", r.line)}
	}
	return v, nil
}

func readRows[T any](r io.Reader, required []string, parse func(record) (T, error)) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, &domain.ValidationError{Field: name, Reason: "missing csv column"}
		}
	}

	var out []T
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		v, err := parse(record{line: line, cols: cols, fields: fields})
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// parseList разбирает список страниц: "['Home', 'Transfers']" (repr из pandas) или "Home;Transfers".
func parseList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil
	}
	sep := ";"
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
		sep = ","
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
