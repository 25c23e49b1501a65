package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"accounts-api/internal/config"
)

// El trafico del servicio son lookups puntuales por identificador unico y
// updates de una fila; un pool chico con conexiones recicladas alcanza.
const (
	maxConns        = 8
	minConns        = 2
	connMaxLifetime = 30 * time.Minute
	connMaxIdleTime = 5 * time.Minute
	connectTimeout  = 5 * time.Second
	pingTimeout     = 3 * time.Second
)

// NewPool construye el pool de conexiones a la base de cuentas.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns
	poolCfg.MaxConnLifetime = connMaxLifetime
	poolCfg.MaxConnIdleTime = connMaxIdleTime
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = connectTimeout

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifica conectividad con un timeout propio para que un arranque
// contra una base caida falle rapido.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return pool.Ping(pingCtx)
}
