package store

import (
	"database/sql"
	"errors"

	"earworm/internal/domain"
)

func (db *DB) CreateURLJob(songID uint32, url string) error {
	_, err := db.Exec(`INSERT INTO url_jobs (song_id, url, output, state) VALUES (?, ?, '', ?)`,
		songID, url, domain.StateWaiting)
	return err
}

func (db *DB) CreateFileJob(songID uint32, filename string) error {
	_, err := db.Exec(`INSERT INTO file_jobs (song_id, filename, output, state) VALUES (?, ?, '', ?)`,
		songID, filename, domain.StateWaiting)
	return err
}

// ClaimURLJob takes the waiting URL job with the lowest song id and moves it
// to downloading, committing immediately so a crash after the claim does not
// re-offer the row. Returns nil when no job is waiting.
func (db *DB) ClaimURLJob() (*domain.URLJob, error) {
	job := &domain.URLJob{}
	err := db.Get(job, `SELECT song_id, url, output, state FROM url_jobs WHERE state = ? ORDER BY song_id LIMIT 1`,
		domain.StateWaiting)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := db.Exec(`UPDATE url_jobs SET state = ? WHERE song_id = ? AND state = ?`,
		domain.StateDownloading, job.SongID, domain.StateWaiting)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// lost the row to a concurrent claimer
		return nil, nil
	}
	job.State = domain.StateDownloading
	return job, nil
}

// ClaimFileJob takes the waiting file job with the lowest song id and moves
// it straight to running (file jobs have no download phase).
func (db *DB) ClaimFileJob() (*domain.FileJob, error) {
	job := &domain.FileJob{}
	err := db.Get(job, `SELECT song_id, filename, output, state FROM file_jobs WHERE state = ? ORDER BY song_id LIMIT 1`,
		domain.StateWaiting)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := db.Exec(`UPDATE file_jobs SET state = ? WHERE song_id = ? AND state = ?`,
		domain.StateRunning, job.SongID, domain.StateWaiting)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	job.State = domain.StateRunning
	return job, nil
}

// SetURLJobState transitions a URL job, overwriting its diagnostic output.
func (db *DB) SetURLJobState(songID uint32, state domain.JobState, output string) error {
	_, err := db.Exec(`UPDATE url_jobs SET state = ?, output = ? WHERE song_id = ?`, state, output, songID)
	return err
}

// SetFileJobState transitions a file job, overwriting its diagnostic output.
func (db *DB) SetFileJobState(songID uint32, state domain.JobState, output string) error {
	_, err := db.Exec(`UPDATE file_jobs SET state = ?, output = ? WHERE song_id = ?`, state, output, songID)
	return err
}

func (db *DB) GetURLJob(songID uint32) (*domain.URLJob, error) {
	job := &domain.URLJob{}
	err := db.Get(job, `SELECT song_id, url, output, state FROM url_jobs WHERE song_id = ?`, songID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (db *DB) GetFileJob(songID uint32) (*domain.FileJob, error) {
	job := &domain.FileJob{}
	err := db.Get(job, `SELECT song_id, filename, output, state FROM file_jobs WHERE song_id = ?`, songID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}
