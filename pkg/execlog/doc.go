// Package execlog is the append-only audit log of rule and workflow
// executions, plus the statistics computed over it.
//
// Engines write through the Logger interface, which never returns an
// error. The production Logger is recorder.Recorder, which queues records
// and writes them to a Storage backend on a single worker:
//
//	store, _ := storage.NewSQLiteStorage(cfg.ExecutionLog.SQLite)
//	rec := recorder.NewRecorder(store, cfg.ExecutionLog.Recorder)
//	defer rec.Close()
//	rulesEngine.SetExecutionLogger(rec)
//
// Service reads the same Storage:
//
//	svc := execlog.NewService(store, cfg.ExecutionLog.Query, logger)
//	stats, _ := svc.GetExecutionStats(ctx, &execlog.Query{Kind: execlog.KindRule})
//
// SuccessRate is Successful/Total*100 and is 0 when nothing matched.
//
// The retention subpackage deletes records by age and by count on a cron
// schedule.
package execlog
