package service

import (
	"bufio"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"gitlab.com/dirk.krummacker/contacts/internal/config"
)

// SchemaVersion tags the layout of the contacts table. Changing the layout requires a new tag
// and a migration.
const SchemaVersion = "V1"

//go:embed schema/*.sql
var schemaFiles embed.FS

// OpenDatabase opens the database described by the store configuration. The embedded store
// is a SQLite file whose directory is created if needed. The mysql driver connects with the
// DBUSER, DBPWD and DBHOST settings.
func OpenDatabase(cfg config.Store) (*sqlx.DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)
	switch cfg.Driver {
	case "sqlite", "":
		path := cfg.Path
		if path == "" {
			path = "Database.sqlite"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
		sqlDB, err = sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	case "mysql":
		dsn := mysql.NewConfig()
		dsn.User = cfg.User
		dsn.Passwd = cfg.Password
		dsn.Net = "tcp"
		dsn.Addr = cfg.Host
		dsn.DBName = cfg.Name
		dsn.ParseTime = true
		sqlDB, err = sql.Open("mysql", dsn.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	return sqlx.NewDb(sqlDB, driver), nil
}

// Migrate creates the tables of the current schema version if they do not exist yet and checks
// the version tag of an existing database.
func Migrate(db *sqlx.DB) error {
	name := "schema/sqlite.sql"
	if db.DriverName() == "mysql" {
		name = "schema/mysql.sql"
	}
	script, err := schemaFiles.Open(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	defer script.Close()
	if err := ExecScript(db, script); err != nil {
		return err
	}

	var versions []string
	if err := db.Select(&versions, `SELECT version FROM schema_version`); err != nil {
		return fmt.Errorf("select schema version: %w", err)
	}
	switch {
	case len(versions) == 0:
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("insert schema version: %w", err)
		}
	case len(versions) > 1 || versions[0] != SchemaVersion:
		return fmt.Errorf("schema version %v does not match %s", versions, SchemaVersion)
	}
	return nil
}

// ExecScript executes the SQL statements read from r one by one. A statement ends on the line
// that contains a semicolon; lines starting with "--" are skipped.
func ExecScript(db *sqlx.DB, r io.Reader) error {
	fileScanner := bufio.NewScanner(r)
	fileScanner.Split(bufio.ScanLines)
	builder := strings.Builder{}
	for fileScanner.Scan() {
		line := fileScanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			statement := builder.String()
			if _, err := db.Exec(statement); err != nil {
				return fmt.Errorf("exec %q: %w", strings.TrimSpace(statement), err)
			}
			builder = strings.Builder{}
		}
	}
	if err := fileScanner.Err(); err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	if rest := strings.TrimSpace(builder.String()); rest != "" {
		if _, err := db.Exec(rest); err != nil {
			return fmt.Errorf("exec %q: %w", rest, err)
		}
	}
	return nil
}
