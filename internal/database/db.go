// Package database opens the MySQL connection pool backing the credential
// store. All DATETIME columns are scanned as time.Time in UTC; repositories
// never deal in location-ambiguous timestamps.
package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config carries connection and pool settings for the credential store.
// Pool values come from configuration; zero values are rejected upstream,
// not defaulted here.
type Config struct {
	User string
	Pass string
	Host string
	Port string
	Name string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// pingTimeout bounds the startup connectivity check. A store that cannot
// answer within this window is treated as down.
const pingTimeout = 5 * time.Second

// Open connects to MySQL, applies the pool settings and verifies the
// connection before returning it.
func Open(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn(cfg))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// dsn builds the connection string through the driver's own config type
// rather than by string assembly, so every knob is validated by the driver.
func dsn(cfg Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}
