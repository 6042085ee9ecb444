package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore keeps records in the audit_logs table.
type PGStore struct {
	db DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

const insertAuditLog = `
INSERT INTO audit_logs (actor_id, action, target_type, target_id, details, severity, category)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text, created_at`

// Insert writes e. Severity and category must already be set.
func (s *PGStore) Insert(ctx context.Context, e Entry) (Record, error) {
	if !e.Severity.Valid() || !e.Category.Valid() {
		return Record{}, fmt.Errorf("audit: entry %q is not classified", e.Action)
	}
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return Record{}, fmt.Errorf("audit: encode details: %w", err)
	}
	rec := Record{
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Details:    e.Details,
		Severity:   e.Severity,
		Category:   e.Category,
	}
	err = s.db.QueryRow(ctx, insertAuditLog,
		optionalText(e.ActorID),
		e.Action,
		optionalText(e.TargetType),
		optionalText(e.TargetID),
		payload,
		string(e.Severity),
		string(e.Category),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("audit: insert: %w", err)
	}
	return rec, nil
}

// Search returns records matching f, newest first. A zero limit returns every row.
func (s *PGStore) Search(ctx context.Context, f Filters, limit, offset int) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", toPgTime(f.From))
	}
	if !f.To.IsZero() {
		add("created_at < $%d", toPgTime(f.To))
	}
	if actor := optionalText(f.ActorID); actor.Valid {
		add("actor_id = $%d", actor)
	}
	if action := strings.TrimSpace(f.Action); action != "" {
		add("action LIKE $%d", escapeLike(action)+"%")
	}
	if f.Severity != "" {
		add("severity = $%d", string(f.Severity))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id::text, actor_id, action, target_type, target_id, details, severity, category, created_at FROM audit_logs`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	if limit > 0 {
		args = append(args, limit, offset)
		fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("audit: search: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                         Record
			actor, targetType, targetID pgtype.Text
			details                     []byte
			severity, category          string
			createdAt                   pgtype.Timestamptz
		)
		if err := rows.Scan(&rec.ID, &actor, &rec.Action, &targetType, &targetID, &details, &severity, &category, &createdAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		rec.ActorID = actor.String
		rec.TargetType = targetType.String
		rec.TargetID = targetID.String
		rec.Severity = Severity(severity)
		rec.Category = Category(category)
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &rec.Details); err != nil {
				return nil, fmt.Errorf("audit: decode details: %w", err)
			}
			if len(rec.Details) == 0 {
				rec.Details = nil
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
