package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ayusman/camrelay/internal/capture"
)

const keyResolution = "camera.resolution"

// SettingsRepository stores key/value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key, or ErrNotFound.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Resolution returns the last resolution saved with SetResolution.
func (r *SettingsRepository) Resolution() (capture.Resolution, error) {
	value, err := r.Get(keyResolution)
	if err != nil {
		return capture.Resolution{}, err
	}

	var res capture.Resolution
	if _, err := fmt.Sscanf(value, "%dx%d", &res.Width, &res.Height); err != nil || !res.Valid() {
		return capture.Resolution{}, fmt.Errorf("stored resolution %q is malformed", value)
	}
	return res, nil
}

// SetResolution persists res for the next start.
func (r *SettingsRepository) SetResolution(res capture.Resolution) error {
	if !res.Valid() {
		return fmt.Errorf("invalid resolution %dx%d", res.Width, res.Height)
	}
	return r.Set(keyResolution, res.String())
}
