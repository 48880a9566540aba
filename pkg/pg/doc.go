// Package pg provides the PostgreSQL plumbing shared by the Postgres job
// broker: a pgx/v5 connection pool with startup retries, goose migrations
// applied from an embedded filesystem, a readiness probe and error helpers.
//
// # Usage
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	if err := pg.Migrate(ctx, pool, migrations, "migrations", cfg, slog.Default()); err != nil {
//		return err
//	}
//
//	ready := pg.Healthcheck(pool)
//
// # Configuration
//
// Config fields are read from PG_* environment variables. PG_CONN_URL is only
// checked by Connect, so services that never open a pool can leave it unset.
//
// # Error Handling
//
// [IsDuplicateKeyError] and [IsNotFoundError] classify pgx errors without
// callers importing pgconn.
package pg
