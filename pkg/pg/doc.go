// Package pg wraps pgx/v5 connection pooling and goose migrations.
//
// Connect opens a *pgxpool.Pool from Config, retrying while the database comes
// up. Migrate applies goose migrations from an fs.FS (typically an embed.FS
// next to the schema's owner) over the same pool. Healthcheck returns a probe
// suitable for readiness endpoints, and the Is*Error helpers classify pgx and
// PostgreSQL errors.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, cfg, log); err != nil {
//		return err
//	}
//
// Configuration is read from PG_* environment variables; see Config.
package pg
