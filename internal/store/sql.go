package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/writepal/internal/domain"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	schema   string
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// sqlStore implements Repository on database/sql for any dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	// writeMu serializes multi-statement writes; SQLite allows one writer.
	writeMu sync.Mutex
}

func (s *sqlStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile and its history.
func (s *sqlStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := s.dialect.rebind(`
		SELECT user_id, age, grade, skill_level, weak_areas_json, created_at, updated_at
		FROM profiles WHERE user_id = ?`)

	var (
		p                    domain.Profile
		weakAreas            string
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.Age, &p.Grade, &p.SkillLevel, &weakAreas, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}
	if weakAreas != "" {
		if err := json.Unmarshal([]byte(weakAreas), &p.WeakAreas); err != nil {
			return nil, fmt.Errorf("decode weak areas for %s: %w", userID, err)
		}
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	history, err := s.history(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.History = history
	return &p, nil
}

func (s *sqlStore) history(ctx context.Context, userID string) ([]domain.Submission, error) {
	query := s.dialect.rebind(`
		SELECT date, topic, score, comments
		FROM submissions WHERE user_id = ? ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close submission rows", "error", closeErr)
		}
	}()

	var subs []domain.Submission
	for rows.Next() {
		var sub domain.Submission
		if err := rows.Scan(&sub.Date, &sub.Topic, &sub.Score, &sub.Comments); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}

// UpsertProfile creates or updates a profile record.
func (s *sqlStore) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	if err := validateUserID(p.UserID); err != nil {
		return err
	}
	weakAreas, err := json.Marshal(p.WeakAreas)
	if err != nil {
		return fmt.Errorf("encode weak areas: %w", err)
	}

	return withRetry(ctx, "upsert profile", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		now := time.Now().Unix()
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(`
			INSERT INTO profiles (user_id, age, grade, skill_level, weak_areas_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				age = excluded.age,
				grade = excluded.grade,
				skill_level = excluded.skill_level,
				weak_areas_json = excluded.weak_areas_json,
				updated_at = excluded.updated_at`),
			p.UserID, p.Age, p.Grade, p.SkillLevel, string(weakAreas), now, now,
		); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}

		if len(p.History) > 0 {
			if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM submissions WHERE user_id = ?`), p.UserID); err != nil {
				return fmt.Errorf("clear submissions: %w", err)
			}
			for _, sub := range p.History {
				if err := s.insertSubmission(ctx, tx, p.UserID, sub, now); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	})
}

// AppendSubmission adds one entry to the learner's history.
func (s *sqlStore) AppendSubmission(ctx context.Context, userID string, sub domain.Submission) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	return withRetry(ctx, "append submission", func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		now := time.Now().Unix()
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(`
			INSERT INTO profiles (user_id, age, grade, skill_level, weak_areas_json, created_at, updated_at)
			VALUES (?, 0, 0, '', '[]', ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET updated_at = excluded.updated_at`),
			userID, now, now,
		); err != nil {
			return fmt.Errorf("ensure profile: %w", err)
		}
		if err := s.insertSubmission(ctx, tx, userID, sub, now); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (s *sqlStore) insertSubmission(ctx context.Context, tx *sql.Tx, userID string, sub domain.Submission, now int64) error {
	_, err := tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO submissions (user_id, date, topic, score, comments, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		userID, sub.Date, sub.Topic, sub.Score, sub.Comments, now,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}
