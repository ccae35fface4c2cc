package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// sqlitePragmas make file-backed stores tolerate a kiosk losing power
// mid-write and the API and print goroutines contending for the lock.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// NewDatabase opens the store named by driver and makes sure its schema exists.
func NewDatabase(ctx context.Context, driver, dsn string) (DatabaseService, error) {
	var (
		service DatabaseService
		err     error
	)
	switch driver {
	case "sqlite":
		service, err = NewSQLiteDatabase(sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}

	if ok, err := service.DoesDatabaseExist(ctx); err != nil {
		_ = service.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	} else if !ok {
		slog.Info("creating photobooth schema", "driver", driver)
	}
	if _, err := service.CreateDatabase(); err != nil {
		_ = service.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return service, nil
}

// sqliteDSN appends the default pragmas to file DSNs. In-memory databases
// and DSNs that already carry pragmas are left alone.
func sqliteDSN(dsn string) string {
	if dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	params := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + strings.Join(params, "&")
}
