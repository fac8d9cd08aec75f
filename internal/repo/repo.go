package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"flowcanvas/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ProcessFilters narrows and paginates process listings. Cursor fields hold
// the composite (updated_at, id) position of the last row of the previous page.
type ProcessFilters struct {
	Limit           int
	CursorUpdatedAt string
	CursorID        string
}

const processColumns = `id,name,COALESCE(description,'') AS description,COALESCE(diagram_xml,'') AS diagram_xml,created_at,updated_at`

func scanProcess(row *sql.Row) (domain.Process, error) {
	var p domain.Process
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.DiagramXML, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProcess(ctx context.Context, p domain.Process) error {
	return insertProcess(ctx, r.DB.ExecContext, p)
}

func (r Repo) InsertProcessTx(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	return insertProcess(ctx, tx.ExecContext, p)
}

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func insertProcess(ctx context.Context, exec execFunc, p domain.Process) error {
	_, err := exec(ctx, `INSERT INTO processes(id,name,description,diagram_xml,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), nullable(p.DiagramXML), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	return scanProcess(r.DB.QueryRowContext(ctx, `SELECT `+processColumns+` FROM processes WHERE id=?`, id))
}

func (r Repo) ListProcesses(ctx context.Context, f ProcessFilters) ([]domain.Process, error) {
	var (
		clauses []string
		args    []any
	)
	if f.CursorUpdatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(updated_at < ? OR (updated_at = ? AND id < ?))")
		args = append(args, f.CursorUpdatedAt, f.CursorUpdatedAt, f.CursorID)
	}
	query := `SELECT ` + processColumns + ` FROM processes`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Process
	for rows.Next() {
		var p domain.Process
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.DiagramXML, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProcess is a full replace of the mutable fields; created_at and id
// are never touched.
func (r Repo) UpdateProcess(ctx context.Context, p domain.Process) error {
	return updateProcess(ctx, r.DB.ExecContext, p)
}

func (r Repo) UpdateProcessTx(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	return updateProcess(ctx, tx.ExecContext, p)
}

func updateProcess(ctx context.Context, exec execFunc, p domain.Process) error {
	res, err := exec(ctx, `UPDATE processes SET name=?,description=?,diagram_xml=?,updated_at=? WHERE id=?`,
		p.Name, nullable(p.Description), nullable(p.DiagramXML), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProcess(ctx context.Context, id string) error {
	return deleteProcess(ctx, r.DB.ExecContext, id)
}

func (r Repo) DeleteProcessTx(ctx context.Context, tx *sql.Tx, id string) error {
	return deleteProcess(ctx, tx.ExecContext, id)
}

func deleteProcess(ctx context.Context, exec execFunc, id string) error {
	res, err := exec(ctx, `DELETE FROM processes WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertStatusCheck(ctx context.Context, sc domain.StatusCheck) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO status_checks(id,client_name,timestamp) VALUES (?,?,?)`,
		sc.ID, sc.ClientName, sc.Timestamp)
	return err
}

func (r Repo) ListStatusChecks(ctx context.Context, limit int) ([]domain.StatusCheck, error) {
	query := `SELECT id,client_name,timestamp FROM status_checks ORDER BY timestamp DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StatusCheck
	for rows.Next() {
		var sc domain.StatusCheck
		if err := rows.Scan(&sc.ID, &sc.ClientName, &sc.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, sc)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, n int, evtType, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	query := `SELECT id,ts,type,COALESCE(entity_id,'') AS entity_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC`
	if n > 0 {
		query += " LIMIT ?"
		args = append(args, n)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
