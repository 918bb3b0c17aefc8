package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lawgate/consult-server-go/internal/config"
)

// ConnConfig holds either a connection URL or the discrete parameters used
// when no URL is configured.
type ConnConfig struct {
	URL string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

func ConnConfigFrom(cfg *config.Config) ConnConfig {
	return ConnConfig{
		URL:            cfg.DatabaseURL,
		Host:           cfg.PG.Host,
		Port:           cfg.PG.Port,
		Database:       cfg.PG.Database,
		User:           cfg.PG.User,
		Password:       cfg.PG.Password,
		SSLMode:        cfg.PG.SSLMode,
		ConnectTimeout: config.DBConnectTimeout,
		KeepAlive:      config.DBKeepAliveIdle,
	}
}

// DSN renders the connection string, adding connect_timeout when missing.
func (c ConnConfig) DSN() (string, error) {
	timeout := strconv.Itoa(int(c.ConnectTimeout.Seconds()))

	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return "", fmt.Errorf("parse database url: %w", err)
		}
		q := u.Query()
		if q.Get("connect_timeout") == "" && c.ConnectTimeout > 0 {
			q.Set("connect_timeout", timeout)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	if c.Host == "" {
		return "", fmt.Errorf("database host is not configured")
	}

	pairs := []struct{ key, value string }{
		{"host", c.Host},
		{"dbname", c.Database},
		{"user", c.User},
		{"password", c.Password},
		{"sslmode", c.SSLMode},
	}
	if c.Port > 0 {
		pairs = append(pairs, struct{ key, value string }{"port", strconv.Itoa(c.Port)})
	}
	if c.ConnectTimeout > 0 {
		pairs = append(pairs, struct{ key, value string }{"connect_timeout", timeout})
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+quoteDSNValue(p.value))
	}
	return strings.Join(parts, " "), nil
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// PostgresOpener dials a single-connection sqlx handle with TCP keep-alive
// tuned for long idle periods between client interactions.
func PostgresOpener(cfg ConnConfig) Opener {
	return func(ctx context.Context) (Handle, error) {
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}

		connector, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, fmt.Errorf("create connector: %w", err)
		}
		connector.Dialer(&keepAliveDialer{
			dialer: net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: cfg.KeepAlive},
		})

		db := sqlx.NewDb(sql.OpenDB(connector), "postgres")
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		pingCtx := ctx
		if cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
			defer cancel()
		}
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}

type keepAliveDialer struct {
	dialer net.Dialer
}

func (d *keepAliveDialer) Dial(network, address string) (net.Conn, error) {
	return d.dialer.Dial(network, address)
}

func (d *keepAliveDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	dialer := d.dialer
	dialer.Timeout = timeout
	return dialer.Dial(network, address)
}

func (d *keepAliveDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.dialer.DialContext(ctx, network, address)
}
