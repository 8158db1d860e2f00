package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"vigil-go/internal/domain"
	"vigil-go/internal/metrics"
	"vigil-go/internal/store"
)

const uniqueViolation = "23505"

const alertColumns = `id, environment, resource, event, severity, correlate, status,
	previous_severity, previous_status, trend_indication, value, text, "group",
	origin, service, tags, attributes, customer, duplicate_count, repeat, timeout,
	create_time, receive_time, last_receive_id, last_receive_time, update_time, history`

// AlertRepository is the PostgreSQL implementation of store.AlertRepository.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a PostgreSQL-backed alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// observe records the latency of one storage operation.
func observe(operation string, start time.Time) {
	metrics.StorageOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// FindDuplicate returns the alert with the exact matching key, or nil.
func (r *AlertRepository) FindDuplicate(ctx context.Context, incoming *domain.Alert) (*domain.Alert, error) {
	defer observe("find_duplicate", time.Now())

	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE environment = $1 AND resource = $2 AND event = $3
		  AND severity = $4 AND customer = $5
		LIMIT 1`, alertColumns)

	row := r.db.pool.QueryRow(ctx, query,
		incoming.Environment, incoming.Resource, incoming.Event,
		string(incoming.Severity), incoming.Customer)

	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate: %w", err)
	}
	return alert, nil
}

// FindCorrelated returns the alert correlated to the incoming event, or nil.
func (r *AlertRepository) FindCorrelated(ctx context.Context, incoming *domain.Alert) (*domain.Alert, error) {
	defer observe("find_correlated", time.Now())

	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE environment = $1 AND resource = $2 AND customer = $3
		  AND ((event = $4 AND severity <> $5) OR $4 = ANY(correlate))
		LIMIT 1`, alertColumns)

	row := r.db.pool.QueryRow(ctx, query,
		incoming.Environment, incoming.Resource, incoming.Customer,
		incoming.Event, string(incoming.Severity))

	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query correlated: %w", err)
	}
	return alert, nil
}

// Create inserts a new alert. A uniqueness violation on the correlation scope
// means a concurrent writer created the record first and maps to ErrConflict.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) (*domain.Alert, error) {
	defer observe("create", time.Now())

	attributes, history, err := marshalDocuments(alert)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO alerts (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING %s`, alertColumns, alertColumns)

	row := r.db.pool.QueryRow(ctx, query,
		alert.ID, alert.Environment, alert.Resource, alert.Event,
		string(alert.Severity), textArray(alert.Correlate), string(alert.Status),
		string(alert.PreviousSeverity), string(alert.PreviousStatus),
		string(alert.TrendIndication), alert.Value, alert.Text, alert.Group,
		alert.Origin, textArray(alert.Service), textArray(alert.Tags), attributes,
		alert.Customer, alert.DuplicateCount, alert.Repeat, alert.Timeout,
		alert.CreateTime, alert.ReceiveTime, alert.LastReceiveID,
		alert.LastReceiveTime, alert.UpdateTime, history)

	created, err := scanAlert(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return created, nil
}

// Update replaces the stored alert conditional on the update_time still
// matching the prior read. Zero rows means another writer got there first.
func (r *AlertRepository) Update(ctx context.Context, prior, updated *domain.Alert) (*domain.Alert, error) {
	defer observe("update", time.Now())

	attributes, history, err := marshalDocuments(updated)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE alerts SET
			environment = $3, resource = $4, event = $5, severity = $6,
			correlate = $7, status = $8, previous_severity = $9,
			previous_status = $10, trend_indication = $11, value = $12,
			text = $13, "group" = $14, origin = $15, service = $16, tags = $17,
			attributes = $18, customer = $19, duplicate_count = $20,
			repeat = $21, timeout = $22, create_time = $23,
			last_receive_id = $24, last_receive_time = $25, update_time = $26,
			history = $27
		WHERE id = $1 AND update_time = $2
		RETURNING %s`, alertColumns)

	row := r.db.pool.QueryRow(ctx, query,
		prior.ID, prior.UpdateTime,
		updated.Environment, updated.Resource, updated.Event,
		string(updated.Severity), textArray(updated.Correlate),
		string(updated.Status), string(updated.PreviousSeverity),
		string(updated.PreviousStatus), string(updated.TrendIndication),
		updated.Value, updated.Text, updated.Group, updated.Origin,
		textArray(updated.Service), textArray(updated.Tags), attributes,
		updated.Customer, updated.DuplicateCount, updated.Repeat,
		updated.Timeout, updated.CreateTime, updated.LastReceiveID,
		updated.LastReceiveTime, updated.UpdateTime, history)

	result, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrConflict
	}
	if err != nil {
		// An update that rewrites the correlation key onto another current
		// record trips the same unique index as a racing create.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return result, nil
}

// FindByID retrieves an alert by full id or unique short-id prefix.
func (r *AlertRepository) FindByID(ctx context.Context, id string) (*domain.Alert, error) {
	defer observe("find_by_id", time.Now())

	if id == "" {
		return nil, domain.ErrAlertNotFound
	}

	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE id LIKE $1 || '%%'
		LIMIT 2`, alertColumns)

	rows, err := r.db.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert by id: %w", err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}
	// An ambiguous prefix reads the same as an unknown id.
	if len(alerts) != 1 {
		return nil, domain.ErrAlertNotFound
	}
	return alerts[0], nil
}

// List retrieves alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	defer observe("list", time.Now())

	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE 1=1`, alertColumns)
	args := []any{}
	argNum := 1

	if filter.Environment != "" {
		query += fmt.Sprintf(" AND environment = $%d", argNum)
		args = append(args, filter.Environment)
		argNum++
	}
	if filter.Resource != "" {
		query += fmt.Sprintf(" AND resource = $%d", argNum)
		args = append(args, filter.Resource)
		argNum++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, string(filter.Severity))
		argNum++
	}
	if filter.Customer != "" {
		query += fmt.Sprintf(" AND customer = $%d", argNum)
		args = append(args, filter.Customer)
		argNum++
	}

	query += " ORDER BY last_receive_time DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// Delete removes an alert permanently.
func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	defer observe("delete", time.Now())

	tag, err := r.db.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

// FindExpired returns alerts whose timeout deadline has passed.
func (r *AlertRepository) FindExpired(ctx context.Context, now time.Time) ([]*domain.Alert, error) {
	defer observe("find_expired", time.Now())

	query := fmt.Sprintf(`
		SELECT %s FROM alerts
		WHERE status NOT IN ($1, $2)
		  AND timeout <> 0
		  AND last_receive_time + timeout * interval '1 second' < $3`, alertColumns)

	rows, err := r.db.pool.Query(ctx, query,
		string(domain.StatusExpired), string(domain.StatusShelved), now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// FindByStatus returns all alerts currently in the given status.
func (r *AlertRepository) FindByStatus(ctx context.Context, status domain.Status) ([]*domain.Alert, error) {
	defer observe("find_by_status", time.Now())

	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE status = $1`, alertColumns)

	rows, err := r.db.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts by status: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// DeleteResolvedBefore removes closed and expired alerts last written before
// the cutoff.
func (r *AlertRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	defer observe("delete_resolved", time.Now())

	query := `
		DELETE FROM alerts
		WHERE status IN ($1, $2) AND last_receive_time < $3
		RETURNING id`

	rows, err := r.db.pool.Query(ctx, query,
		string(domain.StatusClosed), string(domain.StatusExpired), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete resolved alerts: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// DeleteInformationalBefore removes informational, debug and trace severity
// alerts last written before the cutoff.
func (r *AlertRepository) DeleteInformationalBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	defer observe("delete_informational", time.Now())

	query := `
		DELETE FROM alerts
		WHERE severity IN ($1, $2, $3) AND last_receive_time < $4
		RETURNING id`

	rows, err := r.db.pool.Query(ctx, query,
		string(domain.SeverityInformational), string(domain.SeverityDebug),
		string(domain.SeverityTrace), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete informational alerts: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// marshalDocuments serializes the JSONB columns for a write.
func marshalDocuments(alert *domain.Alert) (attributes, history []byte, err error) {
	attrs := alert.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	attributes, err = json.Marshal(attrs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	entries := alert.History
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	history, err = json.Marshal(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return attributes, history, nil
}

// textArray keeps array columns non-null.
func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// scanAlert scans a single alert row.
func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var (
		alert      domain.Alert
		severity   string
		status     string
		prevSev    string
		prevStatus string
		trend      string
		attributes []byte
		history    []byte
	)

	err := row.Scan(
		&alert.ID, &alert.Environment, &alert.Resource, &alert.Event,
		&severity, &alert.Correlate, &status, &prevSev, &prevStatus, &trend,
		&alert.Value, &alert.Text, &alert.Group, &alert.Origin, &alert.Service,
		&alert.Tags, &attributes, &alert.Customer, &alert.DuplicateCount,
		&alert.Repeat, &alert.Timeout, &alert.CreateTime, &alert.ReceiveTime,
		&alert.LastReceiveID, &alert.LastReceiveTime, &alert.UpdateTime,
		&history,
	)
	if err != nil {
		return nil, err
	}

	alert.Severity = domain.Severity(severity)
	alert.Status = domain.Status(status)
	alert.PreviousSeverity = domain.Severity(prevSev)
	alert.PreviousStatus = domain.Status(prevStatus)
	alert.TrendIndication = domain.Trend(trend)

	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &alert.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &alert.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}
	return &alert, nil
}

// scanAlerts scans all rows into a slice of alerts.
func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rows: %w", err)
	}
	return alerts, nil
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate id rows: %w", err)
	}
	return ids, nil
}
