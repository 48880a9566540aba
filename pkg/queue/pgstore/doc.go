// Package pgstore implements queue.Storage on PostgreSQL.
//
// Jobs live in queue_jobs. A pending job is on its queue's ready list when it
// carries a ready_seq position; scheduled jobs additionally have a row in
// queue_schedule. Promotion deletes schedule rows with FOR UPDATE SKIP LOCKED
// and assigns ready positions in due order, so concurrent promoters never
// promote the same entry twice. Claiming uses the same SKIP LOCKED pattern on
// the ready rows.
//
// The schema ships as embedded goose migrations:
//
//	pool, err := pg.Connect(ctx, pgCfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log); err != nil {
//		return err
//	}
//	storage := pgstore.New(pool, pgstore.WithResultTTL(cfg.ResultTTL))
package pgstore
