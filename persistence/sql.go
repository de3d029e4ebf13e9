// persistence/sql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wfunc/connect4bot/models"
)

// sqlArchive holds the database/sql code shared by the SQLite and
// PostgreSQL stores. Queries are written with ? placeholders and rebound
// for drivers that number them.
type sqlArchive struct {
	db       *sql.DB
	numbered bool
}

func (a *sqlArchive) rebind(query string) string {
	if !a.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (a *sqlArchive) SaveRoundRecord(ctx context.Context, rec *models.RoundRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return err
	}
	moves, err := json.Marshal(rec.Moves)
	if err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 对局记录
	err = tx.QueryRowContext(ctx, a.rebind(`
        INSERT INTO round_records (round_id, variant, width, height, length, winner_id, termination, players, moves, started_at, ended_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id`),
		rec.RoundID, rec.Variant, rec.Width, rec.Height, rec.Length, rec.WinnerID,
		rec.Termination, string(players), string(moves), rec.StartedAt.UTC(), rec.EndedAt.UTC(),
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert round record: %w", err)
	}

	// 参与者
	for _, p := range rec.Players {
		_, err = tx.ExecContext(ctx, a.rebind(`
            INSERT INTO round_players (record_id, user_id, outcome) VALUES (?, ?, ?)`),
			rec.ID, p.UserID, p.Outcome,
		)
		if err != nil {
			return fmt.Errorf("insert round player: %w", err)
		}
	}

	return tx.Commit()
}

func (a *sqlArchive) LoadRoundRecord(ctx context.Context, roundID int) (*models.RoundRecord, error) {
	var (
		rec     models.RoundRecord
		players string
		moves   string
	)
	err := a.db.QueryRowContext(ctx, a.rebind(`
        SELECT id, round_id, variant, width, height, length, winner_id, termination, players, moves, started_at, ended_at
        FROM round_records
        WHERE round_id = ?
        ORDER BY id DESC
        LIMIT 1`), roundID,
	).Scan(&rec.ID, &rec.RoundID, &rec.Variant, &rec.Width, &rec.Height, &rec.Length,
		&rec.WinnerID, &rec.Termination, &players, &moves, &rec.StartedAt, &rec.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	if err := json.Unmarshal([]byte(moves), &rec.Moves); err != nil {
		return nil, fmt.Errorf("decode moves: %w", err)
	}
	return &rec, nil
}

func (a *sqlArchive) GetPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	rows, err := a.db.QueryContext(ctx, a.rebind(`
        SELECT outcome, COUNT(*)
        FROM round_players
        WHERE user_id = ?
        GROUP BY outcome`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.PlayerStats{UserID: userID}
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		stats.Add(outcome, n)
	}
	return stats, rows.Err()
}

func (a *sqlArchive) Close() error {
	return a.db.Close()
}
