// Package history persists camera events to SQLite.
//
// Every camera lifecycle transition, capture and recovery outcome is
// recorded as a row in the camera_events table with a JSON detail
// snapshot. This gives operators a queryable local audit trail that
// survives restarts and works when InfluxDB or the MQTT broker is down.
//
// High-frequency telemetry (per-frame metrics) belongs in InfluxDB;
// this store is for the event log.
//
// Usage:
//
//	repo := history.NewSQLiteRepository(db.DB)
//	err := repo.Record(ctx, 0, "finder", history.EventConnect, history.Detail{
//	    "model": "ASI120MM",
//	})
//	entries, err := repo.Recent(ctx, 0, 50)
package history
