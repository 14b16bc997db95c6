package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

const recordColumns = `id, content, summary, media_type, tags, file_path,
	created_at, updated_at, event_at, active, hidden, processing, parent_id`

// recordStore implements driven.RecordStore.
type recordStore struct {
	store *Store
}

var _ driven.RecordStore = (*recordStore)(nil)

// Save inserts a record when its ID is zero, otherwise updates it.
func (s *recordStore) Save(ctx context.Context, record *domain.Record) error {
	tagsJSON, err := json.Marshal(domain.NormaliseTags(record.Tags))
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	args := []any{
		record.Content, nullStringPtr(record.Summary), string(record.MediaType), string(tagsJSON),
		record.FilePath, toUnix(record.CreatedAt), toUnix(record.UpdatedAt), nullTime(record.EventAt),
		record.Active, record.Hidden, record.Processing, nullInt64(record.ParentID),
	}

	if record.ID == 0 {
		res, err := s.store.db.ExecContext(ctx, `
			INSERT INTO records (content, summary, media_type, tags, file_path,
				created_at, updated_at, event_at, active, hidden, processing, parent_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return fmt.Errorf("inserting record: %w", mapConstraintError(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading record id: %w", err)
		}
		record.ID = id
		return nil
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE records SET content = ?, summary = ?, media_type = ?, tags = ?, file_path = ?,
			created_at = ?, updated_at = ?, event_at = ?, active = ?, hidden = ?, processing = ?, parent_id = ?
		WHERE id = ?
	`, append(args, record.ID)...)
	if err != nil {
		return fmt.Errorf("updating record: %w", mapConstraintError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get retrieves a record by ID.
func (s *recordStore) Get(ctx context.Context, id int64) (*domain.Record, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM records WHERE id = ?", id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// GetMany retrieves several records with one query.
func (s *recordStore) GetMany(ctx context.Context, ids []int64) ([]domain.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id IN ("+placeholders(len(ids))+")",
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

// ChildIDs lists the chunk IDs of a parent in insertion order.
func (s *recordStore) ChildIDs(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id FROM records WHERE parent_id = ? ORDER BY id", parentID)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	var ids []int64 //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning child id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating children: %w", err)
	}
	return ids, nil
}

// Scan lists records matching the filter, newest effective time first.
func (s *recordStore) Scan(ctx context.Context, filter driven.ScanFilter) ([]domain.Record, error) {
	var where []string
	var args []any

	opts := filter.Options
	if !opts.IncludeInactive {
		where = append(where, "active = 1")
	}
	if filter.ExcludeHidden {
		where = append(where, "hidden = 0")
	}
	if filter.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(records.tags) WHERE json_each.value = ?)")
		args = append(args, filter.Tag)
	}
	if opts.MediaType != "" {
		where = append(where, "media_type = ?")
		args = append(args, string(opts.MediaType))
	}
	if tr := opts.TimeRange; tr != nil {
		if !tr.Start.IsZero() {
			where = append(where, "COALESCE(event_at, created_at) >= ?")
			args = append(args, toUnix(tr.Start))
		}
		if !tr.End.IsZero() {
			where = append(where, "COALESCE(event_at, created_at) <= ?")
			args = append(args, toUnix(tr.End))
		}
	}

	query := "SELECT " + recordColumns + " FROM records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY COALESCE(event_at, created_at) DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.EffectiveLimit(), max(filter.Offset, 0))

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}
	defer rows.Close()

	return scanRecordRows(rows)
}

// Delete removes records by ID. Children and embeddings cascade.
func (s *recordStore) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM records WHERE id IN ("+placeholders(len(ids))+")", int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single record row.
func scanRecord(row rowScanner) (*domain.Record, error) {
	var r domain.Record
	var summary sql.NullString
	var mediaType, tagsJSON string
	var createdAt, updatedAt int64
	var eventAt, parentID sql.NullInt64

	if err := row.Scan(&r.ID, &r.Content, &summary, &mediaType, &tagsJSON, &r.FilePath,
		&createdAt, &updatedAt, &eventAt, &r.Active, &r.Hidden, &r.Processing, &parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	r.MediaType = domain.MediaType(mediaType)
	r.CreatedAt = fromUnix(createdAt)
	r.UpdatedAt = fromUnix(updatedAt)
	if summary.Valid {
		r.Summary = &summary.String
	}
	if eventAt.Valid {
		t := fromUnix(eventAt.Int64)
		r.EventAt = &t
	}
	if parentID.Valid {
		r.ParentID = &parentID.Int64
	}
	if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
		return nil, fmt.Errorf("unmarshalling tags: %w", err)
	}

	return &r, nil
}

// scanRecordRows scans multiple record rows.
func scanRecordRows(rows *sql.Rows) ([]domain.Record, error) {
	var records []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// mapConstraintError translates trigger and foreign key failures into domain errors.
func mapConstraintError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "record hierarchy too deep"):
		return domain.ErrHierarchyDepth
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: parent record does not exist", domain.ErrNotFound)
	default:
		return err
	}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
