package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"storepulse-shopify-core/internal/domain"
	"storepulse-shopify-core/internal/ports"

	"github.com/rs/zerolog"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DuckDBEventLog implements EventLog over an embedded DuckDB file. Writes
// are serialized through a mutex; the analytical reads run concurrently.
type DuckDBEventLog struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// Open opens (or creates) the warehouse file and ensures the schema.
func Open(path string, logger zerolog.Logger) (*DuckDBEventLog, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event warehouse: %w", err)
	}

	log := &DuckDBEventLog{db: db, logger: logger}
	if err := log.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Event warehouse ready")
	return log, nil
}

// NewDuckDBEventLog wraps an existing handle; the caller owns schema setup
// ordering but CreateSchema is still safe to call repeatedly.
func NewDuckDBEventLog(db *sql.DB, logger zerolog.Logger) *DuckDBEventLog {
	return &DuckDBEventLog{db: db, logger: logger}
}

// Close releases the underlying database handle.
func (l *DuckDBEventLog) Close() error {
	return l.db.Close()
}

// CreateSchema creates the events table and its indexes if absent.
func (l *DuckDBEventLog) CreateSchema(ctx context.Context) error {
	return l.createSchema(ctx)
}

func (l *DuckDBEventLog) createSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			user_id TEXT,
			session_id TEXT,
			store_id TEXT NOT NULL,
			product_id TEXT,
			variant_id TEXT,
			kind TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			price DOUBLE NOT NULL DEFAULT 0,
			currency TEXT,
			discount DOUBLE NOT NULL DEFAULT 0,

			-- Attribution
			page TEXT,
			referrer TEXT,
			utm_source TEXT,
			utm_medium TEXT,
			utm_campaign TEXT,

			-- Device and geography
			device TEXT,
			country TEXT,
			region TEXT,
			city TEXT,

			metadata JSON,
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_events_store_time ON events(store_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_product ON events(store_id, product_id);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
		CREATE INDEX IF NOT EXISTS idx_events_ingested ON events(ingested_at DESC)
	`

	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Append inserts the event, reporting whether it was newly stored. The
// insert carries ON CONFLICT DO NOTHING on the event id, so replaying the
// same fact is a silent no-op.
func (l *DuckDBEventLog) Append(ctx context.Context, event *domain.Event) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	metadata := marshalMetadata(event.Metadata)

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO events (
			event_id, user_id, session_id, store_id, product_id, variant_id,
			kind, timestamp, quantity, price, currency, discount,
			page, referrer, utm_source, utm_medium, utm_campaign,
			device, country, region, city,
			metadata, ingested_at
		) VALUES (
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?
		)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID,
		nullable(event.UserID),
		nullable(event.SessionID),
		event.StoreID,
		nullable(event.ProductID),
		nullable(event.VariantID),
		string(event.Kind),
		event.Timestamp,
		event.Quantity,
		event.Price,
		nullable(event.Currency),
		event.Discount,
		nullable(event.Attr.Page),
		nullable(event.Attr.Referrer),
		nullable(event.Attr.UTMSource),
		nullable(event.Attr.UTMMedium),
		nullable(event.Attr.UTMCampaign),
		nullable(event.Device.Device),
		nullable(event.Device.Country),
		nullable(event.Device.Region),
		nullable(event.Device.City),
		metadata,
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to append event: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read append result: %w", err)
	}
	return affected > 0, nil
}

// ProductFunnel aggregates funnel counts for one product over [from, to).
func (l *DuckDBEventLog) ProductFunnel(ctx context.Context, storeID, productID string, from, to time.Time) (*domain.FunnelCounts, error) {
	return l.funnel(ctx,
		"store_id = ? AND product_id = ? AND timestamp >= ? AND timestamp < ?",
		storeID, productID, from, to)
}

// StoreFunnel aggregates funnel counts across a store over [from, to).
func (l *DuckDBEventLog) StoreFunnel(ctx context.Context, storeID string, from, to time.Time) (*domain.FunnelCounts, error) {
	return l.funnel(ctx,
		"store_id = ? AND timestamp >= ? AND timestamp < ?",
		storeID, from, to)
}

func (l *DuckDBEventLog) funnel(ctx context.Context, where string, args ...interface{}) (*domain.FunnelCounts, error) {
	query := fmt.Sprintf(`
		SELECT
			SUM(CASE WHEN kind = 'view' THEN 1 ELSE 0 END) AS views,
			SUM(CASE WHEN kind = 'add_to_cart' THEN 1 ELSE 0 END) AS add_to_carts,
			SUM(CASE WHEN kind = 'purchase' THEN 1 ELSE 0 END) AS purchases,
			COALESCE(SUM(CASE WHEN kind = 'purchase' THEN price * quantity - discount ELSE 0 END), 0) AS revenue,
			COALESCE(SUM(CASE WHEN kind = 'purchase' THEN quantity ELSE 0 END), 0) AS units_sold,
			COUNT(DISTINCT user_id) AS unique_users,
			COUNT(DISTINCT session_id) AS unique_sessions
		FROM events
		WHERE %s`, where)

	var c domain.FunnelCounts
	var views, carts, purchases, units sql.NullInt64
	err := l.db.QueryRowContext(ctx, query, args...).Scan(
		&views, &carts, &purchases, &c.Revenue, &units, &c.UniqueUsers, &c.UniqueSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate funnel: %w", err)
	}
	c.Views = views.Int64
	c.AddToCarts = carts.Int64
	c.Purchases = purchases.Int64
	c.UnitsSold = units.Int64
	return &c, nil
}

// TopProductsByRevenue ranks products by purchase revenue over [from, to).
func (l *DuckDBEventLog) TopProductsByRevenue(ctx context.Context, storeID string, from, to time.Time, limit int) ([]domain.RankedProduct, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT
			product_id,
			SUM(price * quantity - discount) AS revenue,
			SUM(quantity) AS units_sold,
			COUNT(*) AS purchases
		FROM events
		WHERE store_id = ? AND kind = 'purchase' AND product_id IS NOT NULL
			AND timestamp >= ? AND timestamp < ?
		GROUP BY product_id
		ORDER BY revenue DESC
		LIMIT ?`,
		storeID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}
	defer rows.Close()

	ranked := []domain.RankedProduct{}
	for rows.Next() {
		var p domain.RankedProduct
		if err := rows.Scan(&p.ProductID, &p.Revenue, &p.UnitsSold, &p.Purchases); err != nil {
			return nil, fmt.Errorf("failed to scan ranked product: %w", err)
		}
		ranked = append(ranked, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranked products: %w", err)
	}
	return ranked, nil
}

// RevenueByDay buckets purchase revenue by calendar day over [from, to).
func (l *DuckDBEventLog) RevenueByDay(ctx context.Context, storeID string, from, to time.Time) ([]domain.DailyRevenue, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT
			STRFTIME(DATE_TRUNC('day', timestamp), '%Y-%m-%d') AS day,
			SUM(price * quantity - discount) AS revenue,
			COUNT(*) AS orders
		FROM events
		WHERE store_id = ? AND kind = 'purchase'
			AND timestamp >= ? AND timestamp < ?
		GROUP BY day
		ORDER BY day ASC`,
		storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to bucket revenue by day: %w", err)
	}
	defer rows.Close()

	daily := []domain.DailyRevenue{}
	for rows.Next() {
		var d domain.DailyRevenue
		if err := rows.Scan(&d.Date, &d.Revenue, &d.Orders); err != nil {
			return nil, fmt.Errorf("failed to scan daily revenue: %w", err)
		}
		daily = append(daily, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily revenue: %w", err)
	}
	return daily, nil
}

// Activity returns freshness statistics for one store, or pipeline-wide
// when storeID is empty.
func (l *DuckDBEventLog) Activity(ctx context.Context, storeID string) (*domain.ActivityStats, error) {
	where, args := storeFilter(storeID)
	query := fmt.Sprintf(`
		SELECT
			MAX(timestamp) AS last_event,
			SUM(CASE WHEN timestamp >= NOW() - INTERVAL 1 HOUR THEN 1 ELSE 0 END) AS last_hour,
			SUM(CASE WHEN timestamp >= NOW() - INTERVAL 24 HOUR THEN 1 ELSE 0 END) AS last_24h
		FROM events%s`, where)

	var stats domain.ActivityStats
	var last sql.NullTime
	var lastHour, last24h sql.NullInt64
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&last, &lastHour, &last24h); err != nil {
		return nil, fmt.Errorf("failed to read activity stats: %w", err)
	}
	if last.Valid {
		t := last.Time
		stats.LastEventAt = &t
	}
	stats.LastHour = lastHour.Int64
	stats.Last24h = last24h.Int64
	return &stats, nil
}

// DailyFieldStats returns per-day field presence and validity counts for
// the trailing days window.
func (l *DuckDBEventLog) DailyFieldStats(ctx context.Context, storeID string, days int) ([]domain.DailyFieldStats, error) {
	where, args := storeFilter(storeID)
	if where == "" {
		where = " WHERE timestamp >= NOW() - INTERVAL (?) DAY"
	} else {
		where += " AND timestamp >= NOW() - INTERVAL (?) DAY"
	}
	args = append(args, days)

	query := fmt.Sprintf(`
		SELECT
			STRFTIME(DATE_TRUNC('day', timestamp), '%%Y-%%m-%%d') AS day,
			COUNT(*) AS total,
			SUM(CASE WHEN user_id IS NOT NULL AND user_id != '' THEN 1 ELSE 0 END) AS with_user,
			SUM(CASE WHEN session_id IS NOT NULL AND session_id != '' THEN 1 ELSE 0 END) AS with_session,
			SUM(CASE WHEN product_id IS NOT NULL AND product_id != '' THEN 1 ELSE 0 END) AS with_product,
			SUM(CASE WHEN timestamp IS NOT NULL THEN 1 ELSE 0 END) AS with_timestamp,
			SUM(CASE WHEN kind != 'purchase' OR price > 0 THEN 1 ELSE 0 END) AS valid_price,
			SUM(CASE WHEN kind IN ('view','add_to_cart','remove_from_cart','purchase','sync','update','click','conversion','review') THEN 1 ELSE 0 END) AS valid_kind
		FROM events%s
		GROUP BY day
		ORDER BY day ASC`, where)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily field stats: %w", err)
	}
	defer rows.Close()

	daily := []domain.DailyFieldStats{}
	for rows.Next() {
		var d domain.DailyFieldStats
		if err := rows.Scan(&d.Date, &d.Total, &d.WithUser, &d.WithSession,
			&d.WithProduct, &d.WithTimestamp, &d.ValidPrice, &d.ValidKind); err != nil {
			return nil, fmt.Errorf("failed to scan daily field stats: %w", err)
		}
		daily = append(daily, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily field stats: %w", err)
	}
	return daily, nil
}

// IngestionDelay returns the arrival-delay distribution for the trailing
// days window.
func (l *DuckDBEventLog) IngestionDelay(ctx context.Context, storeID string, days int) (*domain.DelayStats, error) {
	where, args := storeFilter(storeID)
	if where == "" {
		where = " WHERE ingested_at >= NOW() - INTERVAL (?) DAY"
	} else {
		where += " AND ingested_at >= NOW() - INTERVAL (?) DAY"
	}
	args = append(args, days)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS total,
			SUM(CASE WHEN ingested_at - timestamp <= INTERVAL 1 HOUR THEN 1 ELSE 0 END) AS within_hour,
			COALESCE(AVG(EPOCH(ingested_at - timestamp)), 0) AS avg_delay,
			COALESCE(QUANTILE_CONT(EPOCH(ingested_at - timestamp), 0.5), 0) AS p50_delay,
			COALESCE(QUANTILE_CONT(EPOCH(ingested_at - timestamp), 0.95), 0) AS p95_delay
		FROM events%s`, where)

	var stats domain.DelayStats
	var withinHour sql.NullInt64
	err := l.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total, &withinHour, &stats.AvgDelaySec, &stats.P50DelaySec, &stats.P95DelaySec)
	if err != nil {
		return nil, fmt.Errorf("failed to read ingestion delay stats: %w", err)
	}
	stats.WithinHour = withinHour.Int64
	return &stats, nil
}

func storeFilter(storeID string) (string, []interface{}) {
	if storeID == "" {
		return "", nil
	}
	return " WHERE store_id = ?", []interface{}{storeID}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func marshalMetadata(m map[string]string) interface{} {
	if len(m) == 0 {
		return nil
	}
	if data, err := json.Marshal(m); err == nil {
		return string(data)
	}
	return nil
}

var _ ports.EventLog = (*DuckDBEventLog)(nil)
