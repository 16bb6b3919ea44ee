package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"repertoire/internal/core"
	"repertoire/internal/storage"
)

const moveColumns = `move_id, source_id, dest_id, notation, color, difficulty, last_reviewed_utc, interval_days`

type tx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ storage.Tx = (*tx)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if errors.Is(err, core.ErrIntegrity) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreFailure, err)
}

// affected turns a zero-row write into ErrNotFound
func affected(op string, res sql.Result, err error) error {
	if err != nil {
		return storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

// Positions

func scanPosition(row scanner) (core.Position, error) {
	var p core.Position
	var turn string
	if err := row.Scan(&p.ID, &p.State, &turn); err != nil {
		return p, err
	}
	c, err := core.ParseColor(turn)
	if err != nil {
		return p, fmt.Errorf("position %d: %w", p.ID, core.ErrIntegrity)
	}
	p.Turn = c
	return p, nil
}

func (t *tx) PositionByState(state string) (core.Position, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT position_id, state, turn FROM positions WHERE state = ?`, state)
	p, err := scanPosition(row)
	if err != nil {
		return p, storeErr("position by state", err)
	}
	return p, nil
}

func (t *tx) PositionByID(id int64) (core.Position, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT position_id, state, turn FROM positions WHERE position_id = ?`, id)
	p, err := scanPosition(row)
	if err != nil {
		return p, storeErr(fmt.Sprintf("position %d", id), err)
	}
	return p, nil
}

func (t *tx) PositionsByIDs(ids []int64) ([]core.Position, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT position_id, state, turn FROM positions WHERE position_id IN (?` +
		strings.Repeat(", ?", len(ids)-1) + `) ORDER BY position_id`

	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, storeErr("positions by ids", err)
	}
	defer rows.Close()

	var positions []core.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, storeErr("positions by ids", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("positions by ids", err)
	}
	return positions, nil
}

func (t *tx) MaxPositionID() (int64, bool, error) {
	return t.maxID(`SELECT MAX(position_id) FROM positions`)
}

func (t *tx) maxID(query string) (int64, bool, error) {
	var id sql.NullInt64
	if err := t.tx.QueryRowContext(t.ctx, query).Scan(&id); err != nil {
		return 0, false, storeErr("max id", err)
	}
	return id.Int64, id.Valid, nil
}

func (t *tx) InsertPosition(p core.Position) error {
	if err := storage.Validate(p); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO positions (position_id, state, turn) VALUES (?, ?, ?)`,
		p.ID, p.State, p.Turn.String())
	if err != nil {
		return storeErr("insert position", err)
	}
	return nil
}

func (t *tx) DeletePosition(id int64) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM positions WHERE position_id = ?`, id)
	return affected(fmt.Sprintf("delete position %d", id), res, err)
}

// Moves

func scanMove(row scanner) (core.Move, error) {
	var m core.Move
	var color string
	var last sql.NullTime
	if err := row.Scan(&m.ID, &m.SourceID, &m.DestID, &m.Notation, &color, &m.Difficulty, &last, &m.IntervalDays); err != nil {
		return m, err
	}
	c, err := core.ParseColor(color)
	if err != nil {
		return m, fmt.Errorf("move %d: %w", m.ID, core.ErrIntegrity)
	}
	m.Color = c
	if last.Valid {
		ts := last.Time.UTC()
		m.LastReviewed = &ts
	}
	return m, nil
}

// withOpenings fills the owner sets after the move rows are closed
func (t *tx) withOpenings(moves []core.Move) ([]core.Move, error) {
	for i := range moves {
		rows, err := t.tx.QueryContext(t.ctx,
			`SELECT opening_id FROM move_openings WHERE move_id = ? ORDER BY opening_id`, moves[i].ID)
		if err != nil {
			return nil, storeErr("move openings", err)
		}
		var owners []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, storeErr("move openings", err)
			}
			owners = append(owners, id)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, storeErr("move openings", err)
		}
		moves[i].Openings = owners
	}
	return moves, nil
}

func (t *tx) queryMoves(op, query string, args ...any) ([]core.Move, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}

	var moves []core.Move
	for rows.Next() {
		m, err := scanMove(rows)
		if err != nil {
			rows.Close()
			return nil, storeErr(op, err)
		}
		moves = append(moves, m)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, storeErr(op, err)
	}

	return t.withOpenings(moves)
}

func (t *tx) Move(sourceID int64, notation string) (core.Move, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+moveColumns+` FROM moves WHERE source_id = ? AND notation = ?`, sourceID, notation)
	m, err := scanMove(row)
	if err != nil {
		return m, storeErr(fmt.Sprintf("move (%d, %s)", sourceID, notation), err)
	}
	moves, err := t.withOpenings([]core.Move{m})
	if err != nil {
		return core.Move{}, err
	}
	return moves[0], nil
}

func (t *tx) MovesFrom(sourceID int64) ([]core.Move, error) {
	return t.queryMoves("moves from",
		`SELECT `+moveColumns+` FROM moves WHERE source_id = ? ORDER BY move_id`, sourceID)
}

func (t *tx) CountMovesInto(destID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM moves WHERE dest_id = ?`, destID).Scan(&n)
	if err != nil {
		return 0, storeErr("count moves into", err)
	}
	return n, nil
}

func (t *tx) MovesByOpening(openingID int64) ([]core.Move, error) {
	return t.queryMoves("moves by opening",
		`SELECT `+moveColumns+` FROM moves
		WHERE move_id IN (SELECT move_id FROM move_openings WHERE opening_id = ?)
		ORDER BY move_id`, openingID)
}

func (t *tx) InsertMove(m core.Move) (core.Move, error) {
	if err := storage.Validate(m); err != nil {
		return m, err
	}

	var last any
	if m.LastReviewed != nil {
		last = m.LastReviewed.UTC()
	}
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO moves (source_id, dest_id, notation, color, difficulty, last_reviewed_utc, interval_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.SourceID, m.DestID, m.Notation, m.Color.String(), m.Difficulty, last, m.IntervalDays)
	if err != nil {
		return m, storeErr("insert move", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return m, storeErr("insert move", err)
	}

	for _, owner := range m.Openings {
		if _, err := t.tx.ExecContext(t.ctx,
			`INSERT OR IGNORE INTO move_openings (move_id, opening_id) VALUES (?, ?)`, m.ID, owner); err != nil {
			return m, storeErr("insert move opening", err)
		}
	}
	return m.Clone(), nil
}

func (t *tx) moveID(sourceID int64, notation string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT move_id FROM moves WHERE source_id = ? AND notation = ?`, sourceID, notation).Scan(&id)
	if err != nil {
		return 0, storeErr(fmt.Sprintf("move (%d, %s)", sourceID, notation), err)
	}
	return id, nil
}

func (t *tx) AddMoveOpening(sourceID int64, notation string, openingID int64) error {
	id, err := t.moveID(sourceID, notation)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT OR IGNORE INTO move_openings (move_id, opening_id) VALUES (?, ?)`, id, openingID); err != nil {
		return storeErr("add move opening", err)
	}
	return nil
}

func (t *tx) RemoveMoveOpening(sourceID int64, notation string, openingID int64) error {
	id, err := t.moveID(sourceID, notation)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM move_openings WHERE move_id = ? AND opening_id = ?`, id, openingID); err != nil {
		return storeErr("remove move opening", err)
	}
	return nil
}

func (t *tx) UpdateMoveReview(sourceID int64, notation string, r core.Review) error {
	if err := storage.Validate(r); err != nil {
		return err
	}
	var last any
	if r.LastReviewed != nil {
		last = r.LastReviewed.UTC()
	}
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE moves SET difficulty = ?, last_reviewed_utc = ?, interval_days = ?
		WHERE source_id = ? AND notation = ?`,
		r.Difficulty, last, r.IntervalDays, sourceID, notation)
	return affected(fmt.Sprintf("update review (%d, %s)", sourceID, notation), res, err)
}

func (t *tx) DeleteMove(sourceID int64, notation string) error {
	res, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM moves WHERE source_id = ? AND notation = ?`, sourceID, notation)
	return affected(fmt.Sprintf("delete move (%d, %s)", sourceID, notation), res, err)
}

// Openings

func scanOpening(row scanner) (core.Opening, error) {
	var o core.Opening
	var color string
	if err := row.Scan(&o.ID, &o.Name, &color); err != nil {
		return o, err
	}
	c, err := core.ParseColor(color)
	if err != nil {
		return o, fmt.Errorf("opening %d: %w", o.ID, core.ErrIntegrity)
	}
	o.Color = c
	return o, nil
}

func (t *tx) OpeningByID(id int64) (core.Opening, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT opening_id, name, color FROM openings WHERE opening_id = ?`, id)
	o, err := scanOpening(row)
	if err != nil {
		return o, storeErr(fmt.Sprintf("opening %d", id), err)
	}
	return o, nil
}

func (t *tx) OpeningByName(name string, color core.Color) (core.Opening, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT opening_id, name, color FROM openings WHERE name = ? AND color = ?`, name, color.String())
	o, err := scanOpening(row)
	if err != nil {
		return o, storeErr(fmt.Sprintf("opening %q", name), err)
	}
	return o, nil
}

func (t *tx) Openings() ([]core.Opening, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT opening_id, name, color FROM openings ORDER BY opening_id`)
	if err != nil {
		return nil, storeErr("openings", err)
	}
	defer rows.Close()

	var openings []core.Opening
	for rows.Next() {
		o, err := scanOpening(rows)
		if err != nil {
			return nil, storeErr("openings", err)
		}
		openings = append(openings, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("openings", err)
	}
	return openings, nil
}

func (t *tx) MaxOpeningID() (int64, bool, error) {
	return t.maxID(`SELECT MAX(opening_id) FROM openings`)
}

func (t *tx) InsertOpening(o core.Opening) error {
	if err := storage.Validate(o); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO openings (opening_id, name, color) VALUES (?, ?, ?)`, o.ID, o.Name, o.Color.String())
	if err != nil {
		return storeErr("insert opening", err)
	}
	return nil
}

func (t *tx) DeleteOpening(id int64) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM openings WHERE opening_id = ?`, id)
	return affected(fmt.Sprintf("delete opening %d", id), res, err)
}
