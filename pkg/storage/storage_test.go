package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smerrors "github.com/wozozo/smpit/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strptr(s string) *string { return &s }

func createTestSecret(t *testing.T, store *Store, name string) (arn, versionID string) {
	t.Helper()

	arn = fmt.Sprintf("arn:aws:secretsmanager:us-east-1:1:secret:%s-abcdef", name)
	versionID = uuid.NewString()

	err := store.CreateSecret(context.Background(), CreateSecretParams{
		ARN:          arn,
		Name:         name,
		Description:  strptr("test secret"),
		Tags:         []Tag{{Key: "env", Value: "test"}},
		VersionID:    versionID,
		SecretString: strptr(`{"password":"hunter2"}`),
	})
	require.NoError(t, err)
	return arn, versionID
}

func TestCreateSecret(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, versionID := createTestSecret(t, store, "app/db")

	t.Run("resolves by name and by arn", func(t *testing.T) {
		byName, err := store.GetSecret(ctx, "app/db")
		require.NoError(t, err)
		assert.Equal(t, arn, byName.ARN)

		byARN, err := store.GetSecret(ctx, arn)
		require.NoError(t, err)
		assert.Equal(t, "app/db", byARN.Name)
	})

	t.Run("initial version is AWSCURRENT", func(t *testing.T) {
		value, err := store.GetValueByStage(ctx, "app/db", StageCurrent)
		require.NoError(t, err)
		assert.Equal(t, versionID, value.Version.VersionID)
		assert.Equal(t, `{"password":"hunter2"}`, *value.Version.SecretString)
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		err := store.CreateSecret(ctx, CreateSecretParams{
			ARN:          arn + "-other",
			Name:         "app/db",
			VersionID:    uuid.NewString(),
			SecretString: strptr("x"),
		})
		assert.ErrorIs(t, err, smerrors.ErrSecretExists)
	})

	t.Run("unknown secret is not found", func(t *testing.T) {
		_, err := store.GetSecret(ctx, "no/such/secret")
		assert.ErrorIs(t, err, smerrors.ErrSecretNotFound)
	})
}

func TestPutVersionStageSwap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, firstVersion := createTestSecret(t, store, "app/rotating")

	secondVersion := uuid.NewString()
	err := store.PutVersion(ctx, arn, secondVersion, strptr("v2"), nil, []string{StageCurrent})
	require.NoError(t, err)

	t.Run("new version holds AWSCURRENT", func(t *testing.T) {
		value, err := store.GetValueByStage(ctx, arn, StageCurrent)
		require.NoError(t, err)
		assert.Equal(t, secondVersion, value.Version.VersionID)
	})

	t.Run("displaced version holds AWSPREVIOUS", func(t *testing.T) {
		value, err := store.GetValueByStage(ctx, arn, StagePrevious)
		require.NoError(t, err)
		assert.Equal(t, firstVersion, value.Version.VersionID)
	})

	t.Run("third put evicts AWSPREVIOUS from first version", func(t *testing.T) {
		thirdVersion := uuid.NewString()
		require.NoError(t,
			store.PutVersion(ctx, arn, thirdVersion, strptr("v3"), nil, []string{StageCurrent}))

		current, err := store.GetValueByStage(ctx, arn, StageCurrent)
		require.NoError(t, err)
		assert.Equal(t, thirdVersion, current.Version.VersionID)

		previous, err := store.GetValueByStage(ctx, arn, StagePrevious)
		require.NoError(t, err)
		assert.Equal(t, secondVersion, previous.Version.VersionID)

		first, err := store.GetVersion(ctx, arn, firstVersion)
		require.NoError(t, err)
		assert.Empty(t, first.Stages)
	})

	t.Run("duplicate version id is rejected", func(t *testing.T) {
		err := store.PutVersion(ctx, arn, secondVersion, strptr("again"), nil, []string{StageCurrent})
		assert.ErrorIs(t, err, smerrors.ErrVersionExists)
	})
}

func TestGetValueByVersionAndStage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, firstVersion := createTestSecret(t, store, "app/pinned")
	secondVersion := uuid.NewString()
	require.NoError(t,
		store.PutVersion(ctx, arn, secondVersion, strptr("v2"), nil, []string{StageCurrent}))

	t.Run("matching pair resolves", func(t *testing.T) {
		value, err := store.GetValueByVersionAndStage(ctx, arn, secondVersion, StageCurrent)
		require.NoError(t, err)
		assert.Equal(t, secondVersion, value.Version.VersionID)
	})

	t.Run("mismatched pair is not found", func(t *testing.T) {
		_, err := store.GetValueByVersionAndStage(ctx, arn, firstVersion, StageCurrent)
		assert.ErrorIs(t, err, smerrors.ErrVersionNotFound)
	})

	t.Run("version id alone resolves", func(t *testing.T) {
		value, err := store.GetValueByVersionID(ctx, arn, firstVersion)
		require.NoError(t, err)
		assert.Equal(t, firstVersion, value.Version.VersionID)
	})
}

func TestUpdateVersionStage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, firstVersion := createTestSecret(t, store, "app/staged")
	secondVersion := uuid.NewString()
	require.NoError(t,
		store.PutVersion(ctx, arn, secondVersion, strptr("v2"), nil, []string{"STAGING"}))

	t.Run("attach a custom stage", func(t *testing.T) {
		err := store.UpdateVersionStage(ctx, arn, "VALIDATED", nil, &secondVersion)
		require.NoError(t, err)

		version, err := store.GetVersion(ctx, arn, secondVersion)
		require.NoError(t, err)
		assert.Contains(t, version.Stages, "VALIDATED")
	})

	t.Run("remove requires the stage attached to that version", func(t *testing.T) {
		err := store.UpdateVersionStage(ctx, arn, "STAGING", &firstVersion, nil)
		assert.ErrorIs(t, err, smerrors.ErrStageNotAttached)
	})

	t.Run("attach to a missing version fails", func(t *testing.T) {
		missing := uuid.NewString()
		err := store.UpdateVersionStage(ctx, arn, "STAGING", nil, &missing)
		assert.ErrorIs(t, err, smerrors.ErrVersionNotFound)
	})

	t.Run("attach a taken stage without removal fails", func(t *testing.T) {
		err := store.UpdateVersionStage(ctx, arn, "STAGING", nil, &firstVersion)
		assert.ErrorIs(t, err, smerrors.ErrStageTaken)
	})

	t.Run("move between versions", func(t *testing.T) {
		err := store.UpdateVersionStage(ctx, arn, "STAGING", &secondVersion, &firstVersion)
		require.NoError(t, err)

		version, err := store.GetVersion(ctx, arn, firstVersion)
		require.NoError(t, err)
		assert.Contains(t, version.Stages, "STAGING")
	})

	t.Run("moving AWSCURRENT relabels the old current", func(t *testing.T) {
		err := store.UpdateVersionStage(ctx, arn, StageCurrent, nil, &secondVersion)
		require.NoError(t, err)

		current, err := store.GetValueByStage(ctx, arn, StageCurrent)
		require.NoError(t, err)
		assert.Equal(t, secondVersion, current.Version.VersionID)

		previous, err := store.GetValueByStage(ctx, arn, StagePrevious)
		require.NoError(t, err)
		assert.Equal(t, firstVersion, previous.Version.VersionID)
	})
}

func TestUpdateSecret(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, _ := createTestSecret(t, store, "app/updating")

	secondVersion := uuid.NewString()
	cut, err := store.UpdateSecret(ctx, UpdateSecretParams{
		ARN:          arn,
		Description:  strptr("second draft"),
		VersionID:    secondVersion,
		SecretString: strptr("v2"),
		PutValue:     true,
	})
	require.NoError(t, err)
	assert.True(t, cut)

	secret, err := store.GetSecret(ctx, arn)
	require.NoError(t, err)
	assert.Equal(t, "second draft", *secret.Description)

	value, err := store.GetValueByStage(ctx, arn, StageCurrent)
	require.NoError(t, err)
	assert.Equal(t, secondVersion, value.Version.VersionID)

	t.Run("description only", func(t *testing.T) {
		cut, err := store.UpdateSecret(ctx, UpdateSecretParams{
			ARN:         arn,
			Description: strptr("third draft"),
		})
		require.NoError(t, err)
		assert.False(t, cut)

		secret, err := store.GetSecret(ctx, arn)
		require.NoError(t, err)
		assert.Equal(t, "third draft", *secret.Description)
	})

	t.Run("repeated version id keeps the description change", func(t *testing.T) {
		cut, err := store.UpdateSecret(ctx, UpdateSecretParams{
			ARN:          arn,
			Description:  strptr("fourth draft"),
			VersionID:    secondVersion,
			SecretString: strptr("v3"),
			PutValue:     true,
		})
		require.NoError(t, err)
		assert.False(t, cut)

		secret, err := store.GetSecret(ctx, arn)
		require.NoError(t, err)
		assert.Equal(t, "fourth draft", *secret.Description)

		value, err := store.GetValueByStage(ctx, arn, StageCurrent)
		require.NoError(t, err)
		assert.Equal(t, "v2", *value.Version.SecretString)
	})
}

func TestScheduleAndRestoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, _ := createTestSecret(t, store, "app/doomed")

	scheduledAt, err := store.ScheduleDelete(ctx, arn, 7*24*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), scheduledAt, time.Minute)

	secret, err := store.GetSecret(ctx, arn)
	require.NoError(t, err)
	require.NotNil(t, secret.DeletedAt)
	require.NotNil(t, secret.ScheduledDeleteAt)

	t.Run("pending deletion is excluded from listings", func(t *testing.T) {
		count, err := store.CountSecrets(ctx, nil, false)
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = store.CountSecrets(ctx, nil, true)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("restore clears the schedule", func(t *testing.T) {
		require.NoError(t, store.RestoreSecret(ctx, arn))

		secret, err := store.GetSecret(ctx, arn)
		require.NoError(t, err)
		assert.Nil(t, secret.DeletedAt)
		assert.Nil(t, secret.ScheduledDeleteAt)
	})
}

func TestPurgeDeletedSecrets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dueARN, _ := createTestSecret(t, store, "app/due")
	pendingARN, _ := createTestSecret(t, store, "app/pending")

	// Window already elapsed for one, still open for the other.
	_, err := store.ScheduleDelete(ctx, dueARN, -time.Hour)
	require.NoError(t, err)
	_, err = store.ScheduleDelete(ctx, pendingARN, 7*24*time.Hour)
	require.NoError(t, err)

	purged, err := store.PurgeDeletedSecrets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	_, err = store.GetSecret(ctx, dueARN)
	assert.ErrorIs(t, err, smerrors.ErrSecretNotFound)

	_, err = store.GetSecret(ctx, pendingARN)
	assert.NoError(t, err)
}

func TestHardDeleteCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, versionID := createTestSecret(t, store, "app/gone")
	require.NoError(t, store.DeleteSecret(ctx, arn))

	_, err := store.GetSecret(ctx, arn)
	assert.ErrorIs(t, err, smerrors.ErrSecretNotFound)

	_, err = store.GetVersion(ctx, arn, versionID)
	assert.ErrorIs(t, err, smerrors.ErrVersionNotFound)

	tags, err := store.GetTags(ctx, arn)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestTags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, _ := createTestSecret(t, store, "app/tagged")

	t.Run("upsert overwrites existing keys", func(t *testing.T) {
		err := store.UpsertTags(ctx, arn, []Tag{
			{Key: "env", Value: "prod"},
			{Key: "team", Value: "platform"},
		})
		require.NoError(t, err)

		tags, err := store.GetTags(ctx, arn)
		require.NoError(t, err)
		assert.Equal(t, []Tag{{Key: "env", Value: "prod"}, {Key: "team", Value: "platform"}}, tags)
	})

	t.Run("delete ignores unknown keys", func(t *testing.T) {
		err := store.DeleteTags(ctx, arn, []string{"team", "missing"})
		require.NoError(t, err)

		tags, err := store.GetTags(ctx, arn)
		require.NoError(t, err)
		assert.Equal(t, []Tag{{Key: "env", Value: "prod"}}, tags)
	})
}

func TestListSecretsFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prodDbARN, _ := createTestSecret(t, store, "prod/db/password")
	createTestSecret(t, store, "prod/api/key")
	createTestSecret(t, store, "staging/db/password")

	list := func(filters []Filter) []string {
		t.Helper()
		details, err := store.ListSecrets(ctx, ListSecretsParams{
			Filters: filters, Limit: 100,
		})
		require.NoError(t, err)
		names := make([]string, 0, len(details))
		for _, d := range details {
			names = append(names, d.Secret.Name)
		}
		return names
	}

	t.Run("name prefix", func(t *testing.T) {
		names := list([]Filter{{Key: FilterKeyName, Values: []string{"prod/"}}})
		assert.ElementsMatch(t, []string{"prod/db/password", "prod/api/key"}, names)
	})

	t.Run("prefix match is case sensitive", func(t *testing.T) {
		names := list([]Filter{{Key: FilterKeyName, Values: []string{"PROD/"}}})
		assert.Empty(t, names)
	})

	t.Run("values within a clause are OR", func(t *testing.T) {
		names := list([]Filter{{Key: FilterKeyName, Values: []string{"prod/db", "staging/"}}})
		assert.ElementsMatch(t, []string{"prod/db/password", "staging/db/password"}, names)
	})

	t.Run("negation excludes matches", func(t *testing.T) {
		names := list([]Filter{{Key: FilterKeyName, Values: []string{"prod/", "!prod/api"}}})
		assert.ElementsMatch(t, []string{"prod/db/password"}, names)
	})

	t.Run("clauses combine with AND", func(t *testing.T) {
		names := list([]Filter{
			{Key: FilterKeyName, Values: []string{"prod/"}},
			{Key: FilterKeyDescription, Values: []string{"test"}},
		})
		assert.ElementsMatch(t, []string{"prod/db/password", "prod/api/key"}, names)

		names = list([]Filter{
			{Key: FilterKeyName, Values: []string{"prod/"}},
			{Key: FilterKeyDescription, Values: []string{"nope"}},
		})
		assert.Empty(t, names)
	})

	t.Run("tag key and value", func(t *testing.T) {
		names := list([]Filter{{Key: FilterKeyTagKey, Values: []string{"env"}}})
		assert.Len(t, names, 3)

		names = list([]Filter{{Key: FilterKeyTagValue, Values: []string{"nonesuch"}}})
		assert.Empty(t, names)
	})

	t.Run("all matches any column prefix", func(t *testing.T) {
		names := list([]Filter{{Key: FilterKeyAll, Values: []string{"prod"}}})
		assert.ElementsMatch(t, []string{"prod/db/password", "prod/api/key"}, names)

		names = list([]Filter{{Key: FilterKeyAll, Values: []string{"test"}}})
		assert.Len(t, names, 3)
	})

	t.Run("all splits search terms with AND", func(t *testing.T) {
		require.NoError(t, store.UpsertTags(ctx, prodDbARN, []Tag{{Key: "1team", Value: "core"}}))

		names := list([]Filter{{Key: FilterKeyAll, Values: []string{"prod1"}}})
		assert.ElementsMatch(t, []string{"prod/db/password"}, names)

		names = list([]Filter{{Key: FilterKeyAll, Values: []string{"prod9"}}})
		assert.Empty(t, names)
	})

	t.Run("primary-region never matches", func(t *testing.T) {
		names := list([]Filter{{Key: FilterKeyPrimaryRegion, Values: []string{"ap-northeast-1"}}})
		assert.Empty(t, names)
	})

	t.Run("unknown filter key errors", func(t *testing.T) {
		_, err := store.ListSecrets(ctx, ListSecretsParams{
			Filters: []Filter{{Key: "bogus", Values: []string{"x"}}}, Limit: 10,
		})
		assert.Error(t, err)
	})
}

func TestListVersions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, firstVersion := createTestSecret(t, store, "app/versions")
	secondVersion := uuid.NewString()
	require.NoError(t,
		store.PutVersion(ctx, arn, secondVersion, strptr("v2"), nil, []string{StageCurrent}))
	thirdVersion := uuid.NewString()
	require.NoError(t,
		store.PutVersion(ctx, arn, thirdVersion, strptr("v3"), nil, []string{StageCurrent}))

	// firstVersion has no stages left after two swaps.
	t.Run("deprecated versions are hidden by default", func(t *testing.T) {
		count, err := store.CountVersions(ctx, arn, false)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		versions, err := store.ListVersions(ctx, arn, false, 100, 0)
		require.NoError(t, err)
		for _, v := range versions {
			assert.NotEqual(t, firstVersion, v.VersionID)
		}
	})

	t.Run("include deprecated shows all", func(t *testing.T) {
		count, err := store.CountVersions(ctx, arn, true)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
	})

	t.Run("pagination slices newest first", func(t *testing.T) {
		page, err := store.ListVersions(ctx, arn, true, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)

		rest, err := store.ListVersions(ctx, arn, true, 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
	})
}

func TestDescribeSecretDetails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, firstVersion := createTestSecret(t, store, "app/detail")
	secondVersion := uuid.NewString()
	require.NoError(t,
		store.PutVersion(ctx, arn, secondVersion, strptr("v2"), nil, []string{StageCurrent}))

	details, err := store.DescribeSecret(ctx, "app/detail")
	require.NoError(t, err)

	assert.Equal(t, arn, details.Secret.ARN)
	assert.Equal(t, []Tag{{Key: "env", Value: "test"}}, details.Tags)
	assert.Equal(t, []string{StagePrevious}, details.VersionsToStages[firstVersion])
	assert.Equal(t, []string{StageCurrent}, details.VersionsToStages[secondVersion])
	assert.False(t, details.LastChangedAt.IsZero())
	assert.Nil(t, details.LastAccessedAt)

	t.Run("reads update last accessed", func(t *testing.T) {
		require.NoError(t, store.TouchLastAccessed(ctx, arn, secondVersion))

		details, err := store.DescribeSecret(ctx, "app/detail")
		require.NoError(t, err)
		assert.NotNil(t, details.LastAccessedAt)
	})
}

func TestPurgeExcessVersionsKeepsStaged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	arn, _ := createTestSecret(t, store, "app/churn")

	// Pile up well over the retention limit of unstaged versions, all
	// backdated past the grace period.
	old := time.Now().Add(-48 * time.Hour).UnixMilli()
	for i := 0; i < 120; i++ {
		versionID := uuid.NewString()
		_, err := store.db.ExecContext(ctx, `
			INSERT INTO secrets_versions (secret_arn, version_id, secret_string, created_at)
			VALUES (?, ?, ?, ?)`,
			arn, versionID, "old", old+int64(i),
		)
		require.NoError(t, err)
	}

	purged, err := store.PurgeExcessVersions(ctx)
	require.NoError(t, err)
	assert.Positive(t, purged)

	// The staged initial version survives regardless of age.
	value, err := store.GetValueByStage(ctx, arn, StageCurrent)
	require.NoError(t, err)
	assert.NotNil(t, value.Version.SecretString)

	count, err := store.CountVersions(ctx, arn, true)
	require.NoError(t, err)
	assert.EqualValues(t, 100, count)
}
