package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	smerrors "github.com/wozozo/smpit/pkg/errors"
)

// Stage labels with built-in semantics.
const (
	StageCurrent  = "AWSCURRENT"
	StagePrevious = "AWSPREVIOUS"
)

const secretColumns = `arn, name, description, created_at, updated_at, deleted_at, scheduled_delete_at`

// CreateSecretParams carries everything needed to create a secret with
// its initial version.
type CreateSecretParams struct {
	ARN          string
	Name         string
	Description  *string
	Tags         []Tag
	VersionID    string
	SecretString *string
	SecretBinary []byte
}

// CreateSecret inserts a secret, its tags and its initial version staged
// as AWSCURRENT, all in one transaction. A name collision returns
// ErrSecretExists.
func (s *Store) CreateSecret(ctx context.Context, params CreateSecretParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return smerrors.WrapStorageError("begin", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO secrets (arn, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		params.ARN, params.Name, params.Description, now, now,
	)
	if IsUniqueViolation(err) {
		return smerrors.ErrSecretExists
	}
	if err != nil {
		return smerrors.WrapStorageError("create secret", err)
	}

	for _, tag := range params.Tags {
		if err := upsertTag(ctx, tx, params.ARN, tag, now); err != nil {
			return err
		}
	}

	if err := insertVersion(ctx, tx, params.ARN, params.VersionID,
		params.SecretString, params.SecretBinary, now); err != nil {
		return err
	}
	if err := attachStage(ctx, tx, params.ARN, params.VersionID, StageCurrent); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return smerrors.WrapStorageError("commit", err)
	}
	return nil
}

// PutVersion adds a new version to an existing secret and attaches the
// given stage labels, evicting previous holders. When AWSCURRENT moves,
// the displaced version receives AWSPREVIOUS.
func (s *Store) PutVersion(ctx context.Context, secretARN, versionID string,
	secretString *string, secretBinary []byte, stages []string) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return smerrors.WrapStorageError("begin", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()

	if err := insertVersion(ctx, tx, secretARN, versionID, secretString, secretBinary, now); err != nil {
		return err
	}
	for _, stage := range stages {
		if err := attachStage(ctx, tx, secretARN, versionID, stage); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE secrets SET updated_at = ? WHERE arn = ?`, now, secretARN,
	); err != nil {
		return smerrors.WrapStorageError("touch secret", err)
	}

	if err := tx.Commit(); err != nil {
		return smerrors.WrapStorageError("commit", err)
	}
	return nil
}

func insertVersion(ctx context.Context, q dbtx, secretARN, versionID string,
	secretString *string, secretBinary []byte, now int64) error {

	_, err := q.ExecContext(ctx, `
		INSERT INTO secrets_versions (secret_arn, version_id, secret_string, secret_binary, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		secretARN, versionID, secretString, secretBinary, now,
	)
	if IsUniqueViolation(err) {
		return smerrors.ErrVersionExists
	}
	if err != nil {
		return smerrors.WrapStorageError("create version", err)
	}
	return nil
}

// attachStage moves the stage label onto versionID, detaching it from any
// other version first. Moving AWSCURRENT also relabels the displaced
// version as AWSPREVIOUS.
func attachStage(ctx context.Context, q dbtx, secretARN, versionID, stage string) error {
	if stage == StageCurrent {
		var oldCurrent string
		err := q.QueryRowContext(ctx, `
			SELECT version_id FROM secrets_version_stages
			WHERE secret_arn = ? AND value = ?`,
			secretARN, StageCurrent,
		).Scan(&oldCurrent)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return smerrors.WrapStorageError("find current version", err)
		}

		if oldCurrent != "" && oldCurrent != versionID {
			if err := detachStage(ctx, q, secretARN, StagePrevious); err != nil {
				return err
			}
			if err := detachStage(ctx, q, secretARN, StageCurrent); err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx, `
				INSERT INTO secrets_version_stages (secret_arn, version_id, value)
				VALUES (?, ?, ?)`,
				secretARN, oldCurrent, StagePrevious,
			); err != nil {
				return smerrors.WrapStorageError("attach previous stage", err)
			}
		}
	}

	if err := detachStage(ctx, q, secretARN, stage); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO secrets_version_stages (secret_arn, version_id, value)
		VALUES (?, ?, ?)`,
		secretARN, versionID, stage,
	); err != nil {
		return smerrors.WrapStorageError("attach stage", err)
	}
	return nil
}

// detachStage removes the stage label from whichever version holds it
func detachStage(ctx context.Context, q dbtx, secretARN, stage string) error {
	if _, err := q.ExecContext(ctx, `
		DELETE FROM secrets_version_stages
		WHERE secret_arn = ? AND value = ?`,
		secretARN, stage,
	); err != nil {
		return smerrors.WrapStorageError("detach stage", err)
	}
	return nil
}

// GetSecret resolves a secret by name or ARN, including ones scheduled
// for deletion.
func (s *Store) GetSecret(ctx context.Context, secretID string) (*Secret, error) {
	return getSecret(ctx, s.db, secretID)
}

func getSecret(ctx context.Context, q dbtx, secretID string) (*Secret, error) {
	row := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM secrets WHERE name = ? OR arn = ?`, secretColumns),
		secretID, secretID,
	)
	return scanSecret(row)
}

func scanSecret(row *sql.Row) (*Secret, error) {
	var (
		secret               Secret
		createdAt, updatedAt int64
		deletedAt, scheduled sql.NullInt64
	)
	err := row.Scan(&secret.ARN, &secret.Name, &secret.Description,
		&createdAt, &updatedAt, &deletedAt, &scheduled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, smerrors.ErrSecretNotFound
	}
	if err != nil {
		return nil, smerrors.WrapStorageError("get secret", err)
	}

	secret.CreatedAt = time.UnixMilli(createdAt)
	secret.UpdatedAt = time.UnixMilli(updatedAt)
	secret.DeletedAt = unixMilli(deletedAt)
	secret.ScheduledDeleteAt = unixMilli(scheduled)
	return &secret, nil
}

// GetVersion fetches a single version of a secret with its stage labels.
func (s *Store) GetVersion(ctx context.Context, secretARN, versionID string) (*SecretVersion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT secret_arn, version_id, secret_string, secret_binary, created_at, last_accessed_at
		FROM secrets_versions
		WHERE secret_arn = ? AND version_id = ?`,
		secretARN, versionID,
	)
	version, err := scanVersion(row)
	if err != nil {
		return nil, err
	}
	version.Stages, err = s.versionStages(ctx, secretARN, versionID)
	if err != nil {
		return nil, err
	}
	return version, nil
}

func scanVersion(row *sql.Row) (*SecretVersion, error) {
	var (
		version      SecretVersion
		createdAt    int64
		lastAccessed sql.NullInt64
	)
	err := row.Scan(&version.SecretARN, &version.VersionID, &version.SecretString,
		&version.SecretBinary, &createdAt, &lastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, smerrors.ErrVersionNotFound
	}
	if err != nil {
		return nil, smerrors.WrapStorageError("get version", err)
	}
	version.CreatedAt = time.UnixMilli(createdAt)
	version.LastAccessedAt = unixMilli(lastAccessed)
	return &version, nil
}

func (s *Store) versionStages(ctx context.Context, secretARN, versionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value FROM secrets_version_stages
		WHERE secret_arn = ? AND version_id = ?
		ORDER BY value`,
		secretARN, versionID,
	)
	if err != nil {
		return nil, smerrors.WrapStorageError("get stages", err)
	}
	defer rows.Close()

	var stages []string
	for rows.Next() {
		var stage string
		if err := rows.Scan(&stage); err != nil {
			return nil, smerrors.WrapStorageError("scan stage", err)
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// GetValueByStage resolves a secret value by name or ARN and a stage
// label.
func (s *Store) GetValueByStage(ctx context.Context, secretID, stage string) (*SecretValue, error) {
	secret, err := s.GetSecret(ctx, secretID)
	if err != nil {
		return nil, err
	}

	var versionID string
	err = s.db.QueryRowContext(ctx, `
		SELECT version_id FROM secrets_version_stages
		WHERE secret_arn = ? AND value = ?`,
		secret.ARN, stage,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, smerrors.ErrVersionNotFound
	}
	if err != nil {
		return nil, smerrors.WrapStorageError("resolve stage", err)
	}

	return s.secretValue(ctx, secret, versionID)
}

// GetValueByVersionID resolves a secret value by name or ARN and an
// explicit version id.
func (s *Store) GetValueByVersionID(ctx context.Context, secretID, versionID string) (*SecretValue, error) {
	secret, err := s.GetSecret(ctx, secretID)
	if err != nil {
		return nil, err
	}
	return s.secretValue(ctx, secret, versionID)
}

// GetValueByVersionAndStage resolves a version by id and verifies the
// stage label is attached to that same version.
func (s *Store) GetValueByVersionAndStage(ctx context.Context, secretID, versionID, stage string) (*SecretValue, error) {
	secret, err := s.GetSecret(ctx, secretID)
	if err != nil {
		return nil, err
	}

	attached, err := s.stageAttached(ctx, secret.ARN, versionID, stage)
	if err != nil {
		return nil, err
	}
	if !attached {
		return nil, smerrors.ErrVersionNotFound
	}

	return s.secretValue(ctx, secret, versionID)
}

func (s *Store) stageAttached(ctx context.Context, secretARN, versionID, stage string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM secrets_version_stages
		WHERE secret_arn = ? AND version_id = ? AND value = ?`,
		secretARN, versionID, stage,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, smerrors.WrapStorageError("check stage", err)
	}
	return true, nil
}

func (s *Store) secretValue(ctx context.Context, secret *Secret, versionID string) (*SecretValue, error) {
	version, err := s.GetVersion(ctx, secret.ARN, versionID)
	if err != nil {
		return nil, err
	}
	return &SecretValue{Secret: *secret, Version: *version}, nil
}

// TouchLastAccessed records a read of the given version.
func (s *Store) TouchLastAccessed(ctx context.Context, secretARN, versionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE secrets_versions SET last_accessed_at = ?
		WHERE secret_arn = ? AND version_id = ?`,
		time.Now().UnixMilli(), secretARN, versionID,
	)
	return smerrors.WrapStorageError("touch version", err)
}

// UpdateSecretParams carries the fields UpdateSecret may change. The
// version fields only apply when PutValue is set.
type UpdateSecretParams struct {
	ARN          string
	Description  *string
	VersionID    string
	SecretString *string
	SecretBinary []byte
	PutValue     bool
}

// UpdateSecret replaces the description and, when PutValue is set, cuts
// a new AWSCURRENT version, all in one transaction. A version id that
// was already used cuts no version; the description change still
// commits. Reports whether a new version was cut.
func (s *Store) UpdateSecret(ctx context.Context, params UpdateSecretParams) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, smerrors.WrapStorageError("begin", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()

	if params.Description != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE secrets SET description = ?, updated_at = ? WHERE arn = ?`,
			params.Description, now, params.ARN,
		); err != nil {
			return false, smerrors.WrapStorageError("update secret", err)
		}
	}

	versionCut := false
	if params.PutValue {
		err := insertVersion(ctx, tx, params.ARN, params.VersionID,
			params.SecretString, params.SecretBinary, now)
		switch {
		case errors.Is(err, smerrors.ErrVersionExists):
			// Version id already used: the existing version stands.
		case err != nil:
			return false, err
		default:
			if err := attachStage(ctx, tx, params.ARN, params.VersionID, StageCurrent); err != nil {
				return false, err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE secrets SET updated_at = ? WHERE arn = ?`, now, params.ARN,
			); err != nil {
				return false, smerrors.WrapStorageError("touch secret", err)
			}
			versionCut = true
		}
	}

	if err := tx.Commit(); err != nil {
		return false, smerrors.WrapStorageError("commit", err)
	}
	return versionCut, nil
}

// ScheduleDelete marks the secret deleted and schedules its purge after
// the recovery window. Returns the scheduled purge time.
func (s *Store) ScheduleDelete(ctx context.Context, secretARN string, recoveryWindow time.Duration) (time.Time, error) {
	now := time.Now()
	scheduledAt := now.Add(recoveryWindow)

	_, err := s.db.ExecContext(ctx, `
		UPDATE secrets SET deleted_at = ?, scheduled_delete_at = ?, updated_at = ?
		WHERE arn = ?`,
		now.UnixMilli(), scheduledAt.UnixMilli(), now.UnixMilli(), secretARN,
	)
	if err != nil {
		return time.Time{}, smerrors.WrapStorageError("schedule delete", err)
	}
	return scheduledAt, nil
}

// DeleteSecret removes the secret immediately; versions, stages and tags
// cascade.
func (s *Store) DeleteSecret(ctx context.Context, secretARN string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE arn = ?`, secretARN)
	return smerrors.WrapStorageError("delete secret", err)
}

// RestoreSecret clears a pending deletion.
func (s *Store) RestoreSecret(ctx context.Context, secretARN string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE secrets SET deleted_at = NULL, scheduled_delete_at = NULL, updated_at = ?
		WHERE arn = ?`,
		time.Now().UnixMilli(), secretARN,
	)
	return smerrors.WrapStorageError("restore secret", err)
}

// UpsertTags inserts or overwrites tags on a secret.
func (s *Store) UpsertTags(ctx context.Context, secretARN string, tags []Tag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return smerrors.WrapStorageError("begin", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, tag := range tags {
		if err := upsertTag(ctx, tx, secretARN, tag, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return smerrors.WrapStorageError("commit", err)
	}
	return nil
}

func upsertTag(ctx context.Context, q dbtx, secretARN string, tag Tag, now int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO secrets_tags (secret_arn, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (secret_arn, key)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		secretARN, tag.Key, tag.Value, now, now,
	)
	return smerrors.WrapStorageError("upsert tag", err)
}

// DeleteTags removes tags by key. Unknown keys are ignored.
func (s *Store) DeleteTags(ctx context.Context, secretARN string, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return smerrors.WrapStorageError("begin", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM secrets_tags WHERE secret_arn = ? AND key = ?`,
			secretARN, key,
		); err != nil {
			return smerrors.WrapStorageError("delete tag", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return smerrors.WrapStorageError("commit", err)
	}
	return nil
}

// GetTags returns the tags attached to a secret, ordered by key.
func (s *Store) GetTags(ctx context.Context, secretARN string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM secrets_tags
		WHERE secret_arn = ?
		ORDER BY key`,
		secretARN,
	)
	if err != nil {
		return nil, smerrors.WrapStorageError("get tags", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.Key, &tag.Value); err != nil {
			return nil, smerrors.WrapStorageError("scan tag", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// UpdateVersionStage moves a stage label between versions of a secret.
// Removing requires the stage attached to that exact version; attaching
// to a version that does not exist fails with ErrVersionNotFound, and
// attaching a stage held by another version (without removing it first)
// fails with ErrStageTaken. Moving AWSCURRENT relabels the displaced
// version as AWSPREVIOUS.
func (s *Store) UpdateVersionStage(ctx context.Context, secretARN, stage string,
	removeFromVersion, moveToVersion *string) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return smerrors.WrapStorageError("begin", err)
	}
	defer tx.Rollback()

	// Capture the AWSCURRENT holder before any removal so the displaced
	// version can still be relabeled.
	var oldCurrent string
	if stage == StageCurrent && moveToVersion != nil {
		err := tx.QueryRowContext(ctx, `
			SELECT version_id FROM secrets_version_stages
			WHERE secret_arn = ? AND value = ?`,
			secretARN, StageCurrent,
		).Scan(&oldCurrent)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return smerrors.WrapStorageError("find current version", err)
		}
	}

	if removeFromVersion != nil {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM secrets_version_stages
			WHERE secret_arn = ? AND version_id = ? AND value = ?`,
			secretARN, *removeFromVersion, stage,
		)
		if err != nil {
			return smerrors.WrapStorageError("remove stage", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return smerrors.WrapStorageError("remove stage", err)
		}
		if affected == 0 {
			return smerrors.ErrStageNotAttached
		}
	}

	if moveToVersion != nil {
		var one int
		err := tx.QueryRowContext(ctx, `
			SELECT 1 FROM secrets_versions
			WHERE secret_arn = ? AND version_id = ?`,
			secretARN, *moveToVersion,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return smerrors.ErrVersionNotFound
		}
		if err != nil {
			return smerrors.WrapStorageError("check version", err)
		}

		if stage == StageCurrent && oldCurrent != "" && oldCurrent != *moveToVersion {
			if err := detachStage(ctx, tx, secretARN, StagePrevious); err != nil {
				return err
			}
			if err := detachStage(ctx, tx, secretARN, StageCurrent); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO secrets_version_stages (secret_arn, version_id, value)
				VALUES (?, ?, ?)`,
				secretARN, oldCurrent, StagePrevious,
			); err != nil {
				return smerrors.WrapStorageError("attach previous stage", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO secrets_version_stages (secret_arn, version_id, value)
			VALUES (?, ?, ?)`,
			secretARN, *moveToVersion, stage,
		)
		if IsUniqueViolation(err) {
			return smerrors.ErrStageTaken
		}
		if err != nil {
			return smerrors.WrapStorageError("attach stage", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return smerrors.WrapStorageError("commit", err)
	}
	return nil
}

// PurgeDeletedSecrets hard-deletes every secret whose recovery window has
// elapsed. Returns the number of secrets removed.
func (s *Store) PurgeDeletedSecrets(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM secrets WHERE scheduled_delete_at IS NOT NULL AND scheduled_delete_at <= ?`,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, smerrors.WrapStorageError("purge deleted secrets", err)
	}
	return res.RowsAffected()
}

// PurgeExcessVersions trims unstaged versions beyond the newest hundred
// per secret, keeping anything created within the last day. Returns the
// number of versions removed.
func (s *Store) PurgeExcessVersions(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-24 * time.Hour).UnixMilli()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM secrets_versions
		WHERE (secret_arn, version_id) IN (
			SELECT secret_arn, version_id FROM (
				SELECT secret_arn, version_id, created_at,
					ROW_NUMBER() OVER (
						PARTITION BY secret_arn ORDER BY created_at DESC
					) AS rn
				FROM secrets_versions
			) ranked
			WHERE rn > 100 AND created_at < ?
				AND NOT EXISTS (
					SELECT 1 FROM secrets_version_stages st
					WHERE st.secret_arn = ranked.secret_arn
						AND st.version_id = ranked.version_id
				)
		)`,
		cutoff,
	)
	if err != nil {
		return 0, smerrors.WrapStorageError("purge excess versions", err)
	}
	return res.RowsAffected()
}
