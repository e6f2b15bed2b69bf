// Package store persists domain events, metric values and fired alerts in an
// embedded SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/espressojuice/dealereye/internal/models"
	"github.com/espressojuice/dealereye/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id   TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	tenant_id  TEXT NOT NULL,
	site_id    TEXT NOT NULL,
	camera_id  TEXT NOT NULL,
	ts         TEXT NOT NULL,
	payload    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_site_ts ON events(site_id, ts);

CREATE TABLE IF NOT EXISTS metric_values (
	metric_id    TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	site_id      TEXT NOT NULL,
	name         TEXT NOT NULL,
	window_start TEXT NOT NULL,
	window_size  TEXT NOT NULL,
	value        REAL NOT NULL,
	unit         TEXT NOT NULL,
	dimensions   TEXT NOT NULL,
	is_estimated INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_site_name_ts ON metric_values(site_id, name, window_start);

CREATE TABLE IF NOT EXISTS alerts (
	alert_id  TEXT PRIMARY KEY,
	rule_id   TEXT NOT NULL,
	site_id   TEXT NOT NULL,
	metric    TEXT NOT NULL,
	severity  TEXT NOT NULL,
	value     REAL NOT NULL,
	threshold REAL NOT NULL,
	fired_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_site_ts ON alerts(site_id, fired_at);
`

// StoredEvent is an event row as returned by queries: the indexed envelope
// fields plus the full encoded payload.
type StoredEvent struct {
	EventID   uuid.UUID        `json:"event_id"`
	EventType models.EventType `json:"event_type"`
	TenantID  uuid.UUID        `json:"tenant_id"`
	SiteID    uuid.UUID        `json:"site_id"`
	CameraID  uuid.UUID        `json:"camera_id"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
}

// StoredAlert is a fired alert row.
type StoredAlert struct {
	AlertID   uuid.UUID `json:"alert_id"`
	RuleID    string    `json:"rule_id"`
	SiteID    uuid.UUID `json:"site_id"`
	Metric    string    `json:"metric"`
	Severity  string    `json:"severity"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	FiredAt   time.Time `json:"fired_at"`
}

// Store wraps the SQLite handle. Safe for concurrent use; database/sql
// serialises access to the single writer connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema. An
// empty path selects an in-memory database, useful for tests and dev runs.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, utils.NewAppError("store.Open", "open database", err)
	}
	// modernc sqlite allows one writer; more connections just contend.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, utils.NewAppError("store.Open", "apply schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertEvent persists a domain event. The full event is kept as its encoded
// payload so later event types need no schema change.
func (s *Store) InsertEvent(ctx context.Context, ev models.Event) error {
	payload, err := models.EncodeEvent(ev)
	if err != nil {
		return utils.NewAppError("store.InsertEvent", "encode event", err)
	}
	meta := ev.Meta()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (event_id, event_type, tenant_id, site_id, camera_id, ts, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.EventID.String(), string(meta.EventType), meta.TenantID.String(),
		meta.SiteID.String(), meta.CameraID.String(),
		meta.Timestamp.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		return utils.NewAppError("store.InsertEvent", "insert event", err)
	}
	return nil
}

// InsertMetric persists a computed metric value.
func (s *Store) InsertMetric(ctx context.Context, mv models.MetricValue) error {
	dims, err := json.Marshal(mv.Dimensions)
	if err != nil {
		return utils.NewAppError("store.InsertMetric", "encode dimensions", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO metric_values
		 (metric_id, tenant_id, site_id, name, window_start, window_size, value, unit, dimensions, is_estimated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mv.MetricID.String(), mv.TenantID.String(), mv.SiteID.String(), string(mv.Name),
		mv.WindowStart.UTC().Format(time.RFC3339Nano), string(mv.WindowSize),
		mv.Value, mv.Unit, string(dims), boolToInt(mv.IsEstimated),
		mv.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return utils.NewAppError("store.InsertMetric", "insert metric", err)
	}
	return nil
}

// InsertAlert persists a fired alert.
func (s *Store) InsertAlert(ctx context.Context, a StoredAlert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alerts (alert_id, rule_id, site_id, metric, severity, value, threshold, fired_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AlertID.String(), a.RuleID, a.SiteID.String(), a.Metric, a.Severity,
		a.Value, a.Threshold, a.FiredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return utils.NewAppError("store.InsertAlert", "insert alert", err)
	}
	return nil
}

// RecentEvents returns the newest events for a site, newest first.
func (s *Store) RecentEvents(ctx context.Context, siteID uuid.UUID, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, event_type, tenant_id, site_id, camera_id, ts, payload
		 FROM events WHERE site_id = ? ORDER BY ts DESC LIMIT ?`,
		siteID.String(), limit)
	if err != nil {
		return nil, utils.NewAppError("store.RecentEvents", "query events", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var (
			ev                                       StoredEvent
			eventID, eventType, tenant, site, camera string
			ts                                       string
		)
		if err := rows.Scan(&eventID, &eventType, &tenant, &site, &camera, &ts, &ev.Payload); err != nil {
			return nil, utils.NewAppError("store.RecentEvents", "scan event row", err)
		}
		if ev.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, utils.NewAppError("store.RecentEvents", "parse event id", err)
		}
		ev.EventType = models.EventType(eventType)
		ev.TenantID, _ = uuid.Parse(tenant)
		ev.SiteID, _ = uuid.Parse(site)
		ev.CameraID, _ = uuid.Parse(camera)
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, utils.NewAppError("store.RecentEvents", "parse event timestamp", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError("store.RecentEvents", "iterate event rows", err)
	}
	return events, nil
}

// MetricValues returns the values of one metric for a site whose window start
// falls inside [start, end], oldest first.
func (s *Store) MetricValues(ctx context.Context, siteID uuid.UUID, name models.MetricName, start, end time.Time) ([]models.MetricValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric_id, tenant_id, site_id, name, window_start, window_size, value, unit, dimensions, is_estimated, created_at
		 FROM metric_values
		 WHERE site_id = ? AND name = ? AND window_start >= ? AND window_start <= ?
		 ORDER BY window_start ASC`,
		siteID.String(), string(name),
		start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, utils.NewAppError("store.MetricValues", "query metrics", err)
	}
	defer rows.Close()

	var values []models.MetricValue
	for rows.Next() {
		var (
			mv                                        models.MetricValue
			metricID, tenant, site, metricName        string
			windowStart, windowSize, dims, createdAt  string
			estimated                                 int
		)
		if err := rows.Scan(&metricID, &tenant, &site, &metricName, &windowStart, &windowSize,
			&mv.Value, &mv.Unit, &dims, &estimated, &createdAt); err != nil {
			return nil, utils.NewAppError("store.MetricValues", "scan metric row", err)
		}
		mv.MetricID, _ = uuid.Parse(metricID)
		mv.TenantID, _ = uuid.Parse(tenant)
		mv.SiteID, _ = uuid.Parse(site)
		mv.Name = models.MetricName(metricName)
		mv.WindowSize = models.WindowSize(windowSize)
		mv.IsEstimated = estimated != 0
		if mv.WindowStart, err = time.Parse(time.RFC3339Nano, windowStart); err != nil {
			return nil, utils.NewAppError("store.MetricValues", "parse window start", err)
		}
		if mv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, utils.NewAppError("store.MetricValues", "parse created at", err)
		}
		if err := json.Unmarshal([]byte(dims), &mv.Dimensions); err != nil {
			return nil, utils.NewAppError("store.MetricValues", "decode dimensions", err)
		}
		values = append(values, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError("store.MetricValues", "iterate metric rows", err)
	}
	return values, nil
}

// RecentAlerts returns the newest fired alerts for a site, newest first.
func (s *Store) RecentAlerts(ctx context.Context, siteID uuid.UUID, limit int) ([]StoredAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT alert_id, rule_id, site_id, metric, severity, value, threshold, fired_at
		 FROM alerts WHERE site_id = ? ORDER BY fired_at DESC LIMIT ?`,
		siteID.String(), limit)
	if err != nil {
		return nil, utils.NewAppError("store.RecentAlerts", "query alerts", err)
	}
	defer rows.Close()

	var alerts []StoredAlert
	for rows.Next() {
		var (
			a                 StoredAlert
			alertID, site, ts string
		)
		if err := rows.Scan(&alertID, &a.RuleID, &site, &a.Metric, &a.Severity, &a.Value, &a.Threshold, &ts); err != nil {
			return nil, utils.NewAppError("store.RecentAlerts", "scan alert row", err)
		}
		a.AlertID, _ = uuid.Parse(alertID)
		a.SiteID, _ = uuid.Parse(site)
		if a.FiredAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, utils.NewAppError("store.RecentAlerts", "parse fired at", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewAppError("store.RecentAlerts", "iterate alert rows", err)
	}
	return alerts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
