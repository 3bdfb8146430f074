package nutrition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Store finds the reference profile for a food name.
type Store interface {
	FindByName(ctx context.Context, name string) (Profile, bool, error)
}

const findByNameQuery = `
SELECT calories, protein, carbs, fat, fiber, sugar, sodium, calcium, iron, vitamin_a, vitamin_c
FROM nutrition_reference
WHERE lower(name) LIKE '%' || lower(?) || '%' ESCAPE '\'
ORDER BY id
LIMIT 1`

// SQLiteStore reads the nutrition_reference table. Matching is a
// case-insensitive substring test and the lowest id wins, so "rice" also
// matches "rice cake" when that row was loaded first.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) FindByName(ctx context.Context, name string) (Profile, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, nil
	}

	values := make([]float64, len(Nutrients))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}

	err := s.db.QueryRowContext(ctx, findByNameQuery, escapeLike(name)).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query nutrition for %q: %w", name, err)
	}

	p := make(Profile, len(Nutrients))
	for i, n := range Nutrients {
		p[n] = values[i]
	}
	return p, true, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// StaticStore is an in-memory Store. Names are scanned in sorted order.
type StaticStore struct {
	profiles map[string]Profile
	names    []string
}

func NewStaticStore(profiles map[string]Profile) *StaticStore {
	s := &StaticStore{profiles: make(map[string]Profile, len(profiles))}
	for name, p := range profiles {
		lower := strings.ToLower(name)
		s.profiles[lower] = p
		s.names = append(s.names, lower)
	}
	sort.Strings(s.names)
	return s
}

func (s *StaticStore) FindByName(ctx context.Context, name string) (Profile, bool, error) {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return nil, false, nil
	}
	for _, n := range s.names {
		if strings.Contains(n, q) {
			return s.profiles[n], true, nil
		}
	}
	return nil, false, nil
}
