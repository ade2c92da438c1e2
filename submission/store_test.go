package submission

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/model"
)

type fixture struct {
	db     *sql.DB
	store  *Store
	formID int64
	alice  int64
	bob    int64
}

func setupStore(t *testing.T) fixture {
	db, err := database.Open(filepath.Join(t.TempDir(), "submission.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := fixture{db: db, store: NewStore(db)}
	require.NoError(t, db.QueryRow(
		"INSERT INTO form (name, created_at) VALUES ('Visits', CURRENT_TIMESTAMP) RETURNING id",
	).Scan(&f.formID))
	require.NoError(t, db.QueryRow(
		"INSERT INTO user (username, password_hash, role) VALUES ('alice', x'00', 'staff') RETURNING id",
	).Scan(&f.alice))
	require.NoError(t, db.QueryRow(
		"INSERT INTO user (username, password_hash, role) VALUES ('bob', x'00', 'staff') RETURNING id",
	).Scan(&f.bob))
	return f
}

func TestStoreCreateAndList(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	first, err := f.store.Create(ctx, f.formID, f.alice, Document{"Site": Scalar("A"), "Issues": List()})
	require.NoError(t, err)
	second, err := f.store.Create(ctx, f.formID, f.bob, Document{"Site": Scalar("B"), "Issues": List("power")})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	subs, err := f.store.ListByForm(ctx, f.formID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, first.ID, subs[0].ID)
	assert.Equal(t, "alice", subs[0].Username)
	assert.Equal(t, "Visits", subs[0].FormName)
	assert.True(t, first.Document.Equal(subs[0].Document))
	assert.True(t, second.Document.Equal(subs[1].Document))

	mine, err := f.store.ListByUser(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)

	n, err := f.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreCreateUnknownForm(t *testing.T) {
	f := setupStore(t)

	_, err := f.store.Create(context.Background(), 404, f.alice, Document{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStoreListMalformed(t *testing.T) {
	f := setupStore(t)
	ctx := context.Background()

	_, err := f.db.Exec(
		"INSERT INTO submission (form_id, user_id, created_at, data) VALUES (?, ?, CURRENT_TIMESTAMP, '{\"Site\": 42}')",
		f.formID, f.alice,
	)
	require.NoError(t, err)

	_, err = f.store.ListByForm(ctx, f.formID)
	assert.ErrorIs(t, err, model.ErrMalformedDocument)
}

func TestStoreListEmpty(t *testing.T) {
	f := setupStore(t)

	subs, err := f.store.ListByForm(context.Background(), f.formID)
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}
