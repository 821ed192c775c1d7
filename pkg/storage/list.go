package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	smerrors "github.com/wozozo/smpit/pkg/errors"
)

// ListSecretsParams narrows and pages a secrets listing. Results order
// by creation time, newest first unless SortAscending is set.
type ListSecretsParams struct {
	Filters                []Filter
	IncludePlannedDeletion bool
	SortAscending          bool
	Limit                  int64
	Offset                 int64
}

// ListSecrets returns one page of secrets matching the filters, with
// tags, stage labels and change times resolved for each.
func (s *Store) ListSecrets(ctx context.Context, params ListSecretsParams) ([]SecretDetails, error) {
	predicate, args, err := buildFilterPredicate(params.Filters)
	if err != nil {
		return nil, smerrors.WrapStorageError("build filter", err)
	}

	deletionClause := "s.deleted_at IS NULL"
	if params.IncludePlannedDeletion {
		deletionClause = "1=1"
	}

	direction := "DESC"
	if params.SortAscending {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT s.arn, s.name, s.description, s.created_at, s.updated_at,
			s.deleted_at, s.scheduled_delete_at
		FROM secrets s
		WHERE %s AND %s
		ORDER BY s.created_at %s, s.name %s
		LIMIT ? OFFSET ?`,
		deletionClause, predicate, direction, direction,
	)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, smerrors.WrapStorageError("list secrets", err)
	}
	defer rows.Close()

	var secrets []Secret
	for rows.Next() {
		var (
			secret               Secret
			createdAt, updatedAt int64
			deletedAt, scheduled sql.NullInt64
		)
		if err := rows.Scan(&secret.ARN, &secret.Name, &secret.Description,
			&createdAt, &updatedAt, &deletedAt, &scheduled); err != nil {
			return nil, smerrors.WrapStorageError("scan secret", err)
		}
		secret.CreatedAt = time.UnixMilli(createdAt)
		secret.UpdatedAt = time.UnixMilli(updatedAt)
		secret.DeletedAt = unixMilli(deletedAt)
		secret.ScheduledDeleteAt = unixMilli(scheduled)
		secrets = append(secrets, secret)
	}
	if err := rows.Err(); err != nil {
		return nil, smerrors.WrapStorageError("list secrets", err)
	}

	details := make([]SecretDetails, 0, len(secrets))
	for _, secret := range secrets {
		d, err := s.secretDetails(ctx, secret)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, nil
}

// CountSecrets counts the secrets matching the filters.
func (s *Store) CountSecrets(ctx context.Context, filters []Filter, includePlannedDeletion bool) (int64, error) {
	predicate, args, err := buildFilterPredicate(filters)
	if err != nil {
		return 0, smerrors.WrapStorageError("build filter", err)
	}

	deletionClause := "s.deleted_at IS NULL"
	if includePlannedDeletion {
		deletionClause = "1=1"
	}

	var count int64
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM secrets s WHERE %s AND %s`,
		deletionClause, predicate,
	), args...).Scan(&count)
	if err != nil {
		return 0, smerrors.WrapStorageError("count secrets", err)
	}
	return count, nil
}

// DescribeSecret resolves a secret by name or ARN with tags, stage labels
// and change times.
func (s *Store) DescribeSecret(ctx context.Context, secretID string) (*SecretDetails, error) {
	secret, err := s.GetSecret(ctx, secretID)
	if err != nil {
		return nil, err
	}
	return s.secretDetails(ctx, *secret)
}

func (s *Store) secretDetails(ctx context.Context, secret Secret) (*SecretDetails, error) {
	tags, err := s.GetTags(ctx, secret.ARN)
	if err != nil {
		return nil, err
	}

	stages, err := s.versionsToStages(ctx, secret.ARN)
	if err != nil {
		return nil, err
	}

	lastChanged, lastAccessed, err := s.changeTimes(ctx, secret.ARN)
	if err != nil {
		return nil, err
	}

	return &SecretDetails{
		Secret:           secret,
		Tags:             tags,
		VersionsToStages: stages,
		LastChangedAt:    lastChanged,
		LastAccessedAt:   lastAccessed,
	}, nil
}

func (s *Store) versionsToStages(ctx context.Context, secretARN string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, value FROM secrets_version_stages
		WHERE secret_arn = ?
		ORDER BY version_id, value`,
		secretARN,
	)
	if err != nil {
		return nil, smerrors.WrapStorageError("get stages", err)
	}
	defer rows.Close()

	stages := make(map[string][]string)
	for rows.Next() {
		var versionID, stage string
		if err := rows.Scan(&versionID, &stage); err != nil {
			return nil, smerrors.WrapStorageError("scan stage", err)
		}
		stages[versionID] = append(stages[versionID], stage)
	}
	return stages, rows.Err()
}

// changeTimes returns the newest change across the secret row, its
// versions and its tags, and the newest version access time.
func (s *Store) changeTimes(ctx context.Context, secretARN string) (time.Time, *time.Time, error) {
	var changedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(t) FROM (
			SELECT updated_at AS t FROM secrets WHERE arn = ?
			UNION ALL
			SELECT created_at AS t FROM secrets_versions WHERE secret_arn = ?
			UNION ALL
			SELECT updated_at AS t FROM secrets_tags WHERE secret_arn = ?
		)`,
		secretARN, secretARN, secretARN,
	).Scan(&changedAt)
	if err != nil {
		return time.Time{}, nil, smerrors.WrapStorageError("last changed", err)
	}

	var accessedAt sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT MAX(last_accessed_at) FROM secrets_versions WHERE secret_arn = ?`,
		secretARN,
	).Scan(&accessedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil, smerrors.WrapStorageError("last accessed", err)
	}

	return time.UnixMilli(changedAt), unixMilli(accessedAt), nil
}

// ListVersions returns one page of a secret's versions, newest first.
// Versions with no stage label are deprecated and skipped unless
// includeDeprecated is set.
func (s *Store) ListVersions(ctx context.Context, secretARN string,
	includeDeprecated bool, limit, offset int64) ([]SecretVersion, error) {

	query := `
		SELECT v.secret_arn, v.version_id, v.created_at, v.last_accessed_at
		FROM secrets_versions v
		WHERE v.secret_arn = ?` + deprecatedClause(includeDeprecated) + `
		ORDER BY v.created_at DESC, v.version_id
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, secretARN, limit, offset)
	if err != nil {
		return nil, smerrors.WrapStorageError("list versions", err)
	}
	defer rows.Close()

	var versions []SecretVersion
	for rows.Next() {
		var (
			version      SecretVersion
			createdAt    int64
			lastAccessed sql.NullInt64
		)
		if err := rows.Scan(&version.SecretARN, &version.VersionID,
			&createdAt, &lastAccessed); err != nil {
			return nil, smerrors.WrapStorageError("scan version", err)
		}
		version.CreatedAt = time.UnixMilli(createdAt)
		version.LastAccessedAt = unixMilli(lastAccessed)
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, smerrors.WrapStorageError("list versions", err)
	}

	for i := range versions {
		versions[i].Stages, err = s.versionStages(ctx, secretARN, versions[i].VersionID)
		if err != nil {
			return nil, err
		}
	}
	return versions, nil
}

// CountVersions counts a secret's versions under the same deprecation
// rule as ListVersions.
func (s *Store) CountVersions(ctx context.Context, secretARN string, includeDeprecated bool) (int64, error) {
	query := `
		SELECT COUNT(*) FROM secrets_versions v
		WHERE v.secret_arn = ?` + deprecatedClause(includeDeprecated)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, secretARN).Scan(&count); err != nil {
		return 0, smerrors.WrapStorageError("count versions", err)
	}
	return count, nil
}

func deprecatedClause(includeDeprecated bool) string {
	if includeDeprecated {
		return ""
	}
	return ` AND EXISTS (
		SELECT 1 FROM secrets_version_stages st
		WHERE st.secret_arn = v.secret_arn AND st.version_id = v.version_id
	)`
}
