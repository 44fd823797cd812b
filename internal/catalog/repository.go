package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/heimdex/heimdex-player/internal/db"
)

type Repository interface {
	GetVideo(ctx context.Context, id string) (*Video, error)
	ListVideos(ctx context.Context) ([]*Video, error)

	GetScene(ctx context.Context, id string) (*Scene, error)
	ListScenes(ctx context.Context, videoID string) ([]*Scene, error)
	UpdateScene(ctx context.Context, id string, update SceneUpdate) error
	DeleteScenes(ctx context.Context, ids []string) (int64, error)

	ListTranscripts(ctx context.Context, videoID string) ([]*Transcript, error)

	// ImportVideo stores a video together with its scenes and transcripts atomically.
	ImportVideo(ctx context.Context, video *Video, scenes []*Scene, transcripts []*Transcript) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: conn}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertVideo(ctx context.Context, ex execer, v *Video) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO videos (id, filename, filepath, duration_seconds, timecode_offset, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID, v.Filename, v.Filepath, nullFloat(v.DurationSeconds), nullString(v.TimecodeOffset), v.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, filename, filepath, duration_seconds, timecode_offset, created_at
		FROM videos WHERE id = ?
	`, id)

	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *SQLiteRepository) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, filepath, duration_seconds, timecode_offset, created_at
		FROM videos ORDER BY filename
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(row scanner) (*Video, error) {
	var v Video
	var duration sql.NullFloat64
	var offset sql.NullString
	var createdAt string

	if err := row.Scan(&v.ID, &v.Filename, &v.Filepath, &duration, &offset, &createdAt); err != nil {
		return nil, err
	}
	v.DurationSeconds = duration.Float64
	v.TimecodeOffset = offset.String
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &v, nil
}

const sceneColumns = `id, video_id, scene_number, start_timecode, end_timecode,
	description, evaluation_tag, good_reason, bad_reason, thumbnail_path`

func scanScene(row scanner) (*Scene, error) {
	var s Scene
	err := row.Scan(&s.ID, &s.VideoID, &s.SceneNumber, &s.StartTimecode, &s.EndTimecode,
		&s.Description, &s.EvaluationTag, &s.GoodReason, &s.BadReason, &s.ThumbnailRef)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLiteRepository) GetScene(ctx context.Context, id string) (*Scene, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sceneColumns+" FROM scenes WHERE id = ?", id)
	s, err := scanScene(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListScenes(ctx context.Context, videoID string) ([]*Scene, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sceneColumns+" FROM scenes WHERE video_id = ? ORDER BY scene_number, start_timecode", videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenes []*Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, s)
	}
	return scenes, rows.Err()
}

func (r *SQLiteRepository) UpdateScene(ctx context.Context, id string, u SceneUpdate) error {
	var sets []string
	var args []any
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.EvaluationTag != nil {
		sets = append(sets, "evaluation_tag = ?")
		args = append(args, *u.EvaluationTag)
	}
	if u.GoodReason != nil {
		sets = append(sets, "good_reason = ?")
		args = append(args, *u.GoodReason)
	}
	if u.BadReason != nil {
		sets = append(sets, "bad_reason = ?")
		args = append(args, *u.BadReason)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE scenes SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteScenes(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var deleted int64
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM scenes WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *SQLiteRepository) ListTranscripts(ctx context.Context, videoID string) ([]*Transcript, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, video_id, scene_id, start_timecode, end_timecode, text
		FROM transcriptions WHERE video_id = ? ORDER BY start_timecode
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transcripts []*Transcript
	for rows.Next() {
		var t Transcript
		var sceneID sql.NullString
		if err := rows.Scan(&t.ID, &t.VideoID, &sceneID, &t.StartTimecode, &t.EndTimecode, &t.Text); err != nil {
			return nil, err
		}
		t.SceneID = sceneID.String
		transcripts = append(transcripts, &t)
	}
	return transcripts, rows.Err()
}

func (r *SQLiteRepository) ImportVideo(ctx context.Context, video *Video, scenes []*Scene, transcripts []*Transcript) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertVideo(ctx, tx, video); err != nil {
			return fmt.Errorf("insert video: %w", err)
		}

		for _, s := range scenes {
			_, err := tx.ExecContext(ctx, "INSERT INTO scenes ("+sceneColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				s.ID, s.VideoID, s.SceneNumber, s.StartTimecode, s.EndTimecode,
				s.Description, s.EvaluationTag, s.GoodReason, s.BadReason, s.ThumbnailRef)
			if err != nil {
				return fmt.Errorf("insert scene %d: %w", s.SceneNumber, err)
			}
		}

		for _, t := range transcripts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO transcriptions (id, video_id, scene_id, start_timecode, end_timecode, text)
				VALUES (?, ?, ?, ?, ?, ?)
			`, t.ID, t.VideoID, nullString(t.SceneID), t.StartTimecode, t.EndTimecode, t.Text)
			if err != nil {
				return fmt.Errorf("insert transcript: %w", err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f float64) sql.NullFloat64 {
	if f <= 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}
