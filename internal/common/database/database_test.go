package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"docgen-workers/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresClient_WithTxCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	client := NewPostgresFromDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE document_templates").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = client.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE document_templates SET version = version + 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_WithTxRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	client := NewPostgresFromDB(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = client.WithTx(context.Background(), func(tx *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestNewSupabase_Validation(t *testing.T) {
	_, err := NewSupabase(config.SupabaseConfig{Key: "k"})
	assert.ErrorContains(t, err, "URL")
	_, err = NewSupabase(config.SupabaseConfig{URL: "http://localhost"})
	assert.ErrorContains(t, err, "API key")
}

func TestNewElasticsearch_DefaultIndex(t *testing.T) {
	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{"http://localhost:9200"}})
	require.NoError(t, err)
	assert.Equal(t, "document_templates", client.Index)
}
