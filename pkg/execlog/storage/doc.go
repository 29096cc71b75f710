// Package storage provides execution log backends.
//
// MemoryStorage keeps records in a map and suits tests and the "memory"
// backend. SQLiteStorage persists records through github.com/mattn/go-sqlite3
// with WAL mode and a busy timeout:
//
//	store, err := storage.NewSQLiteStorage(cfg.ExecutionLog.SQLite)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
// Both backends order query results by executed_at descending unless the
// query asks otherwise, with the record id as a tiebreak.
package storage
