package pg

import (
	_ "github.com/lib/pq"
	"github.com/openhims/finance-gateway/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate applies the goose migrations in dir. The migrations define the
// finance tables and the cash posting stored procedures, so the schema and
// the procedure bodies version together.
func Migrate(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal(err)
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	if err = goose.Up(db, dir); err != nil {
		logger.Fatal(err)
	}

	return nil
}
