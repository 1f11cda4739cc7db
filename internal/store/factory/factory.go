package factory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loykin/timewarden/internal/store"
	pg "github.com/loykin/timewarden/internal/store/postgres"
	sq "github.com/loykin/timewarden/internal/store/sqlite"
)

type opener func(dsn string) (store.Store, error)

func openPostgres(dsn string) (store.Store, error) { return pg.New(dsn) }
func openSQLite(path string) (store.Store, error) { return sq.New(path) }

// schemes maps a DSN scheme to its driver. keep is set when the driver
// wants the full DSN rather than the part after "://".
var schemes = map[string]struct {
	open opener
	keep bool
}{
	"postgres":   {openPostgres, true},
	"postgresql": {openPostgres, true},
	"sqlite":     {openSQLite, false},
	"sqlite3":    {openSQLite, false},
}

// NewFromDSN opens the store a DSN names. Accepted forms:
//   - "postgres://..." or "postgresql://..."
//   - "sqlite://<path>", "sqlite3://<path>", a bare file path or ":memory:"
func NewFromDSN(dsn string) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	if d == "" {
		return nil, errors.New("empty DSN")
	}
	scheme, rest, ok := strings.Cut(d, "://")
	if !ok {
		return sq.New(d)
	}
	s, known := schemes[strings.ToLower(scheme)]
	if !known {
		return nil, fmt.Errorf("unsupported store scheme %q", scheme)
	}
	if s.keep {
		return s.open(d)
	}
	return s.open(rest)
}
