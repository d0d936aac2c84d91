package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/config"
)

// DSN renders cfg as a go-sql-driver DSN.  Repositories rely on parseTime
// (DATETIME scans into time.Time, in UTC) and on clientFoundRows (UPDATE
// reports matched rows, so an unchanged row is not mistaken for a missing
// one).
func DSN(cfg config.DBConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.ClientFoundRows = true
	return mc.FormatDSN()
}

// Open connects to the database described by cfg.
func Open(ctx context.Context, cfg config.DBConfig, log *logrus.Entry) (*sql.DB, error) {
	return OpenDSN(ctx, DSN(cfg), cfg, log)
}

// OpenDSN applies cfg's pool settings to a connection for dsn and pings it,
// retrying with exponential backoff for up to cfg.ConnectTimeout.
// Zero pool settings keep the database/sql defaults.
func OpenDSN(ctx context.Context, dsn string, cfg config.DBConfig, log *logrus.Entry) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		idle := cfg.MaxIdleConns
		if idle <= 0 || idle > cfg.MaxOpenConns {
			idle = cfg.MaxOpenConns
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(idle)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cfg.ConnectTimeout
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 5 * time.Second
	}
	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pctx)
	}
	notify := func(err error, next time.Duration) {
		log.WithError(err).WithField("retry_in", next).Warn("database not ready")
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
