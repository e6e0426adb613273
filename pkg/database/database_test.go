package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBScan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    map[string]any
		wantErr bool
	}{
		{name: "bytes", src: []byte(`{"a":1}`), want: map[string]any{"a": float64(1)}},
		{name: "string", src: `{"b":"x"}`, want: map[string]any{"b": "x"}},
		{name: "nil", src: nil, want: nil},
		{name: "unsupported", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j JSONB[map[string]any]
			err := j.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, j.GetValue())
		})
	}
}

func TestJSONBValue(t *testing.T) {
	v, err := NewJSONB(map[string]any{"recovery_mode": true}).Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"recovery_mode":true}`, string(v.([]byte)))
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505", Constraint: "directory_entities_external_id_key"}

	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.True(t, IsUniqueViolation(unique, "directory_entities_external_id_key"))
	assert.False(t, IsUniqueViolation(unique, "directory_entities_slug_key"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsUndefinedTable(t *testing.T) {
	assert.True(t, IsUndefinedTable(fmt.Errorf("select: %w", &pq.Error{Code: "42P01"})))
	assert.False(t, IsUndefinedTable(&pq.Error{Code: "23505"}))
	assert.False(t, IsUndefinedTable(errors.New("boom")))
}

func TestOnConflictDoNothing(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("source_reviews").Cols("entity_id", "source_review_id").Values("e1", "r1")
	ib.OnConflictDoNothing("entity_id", "source_review_id")

	query, args := ib.Build()
	assert.Equal(t, "INSERT INTO source_reviews (entity_id, source_review_id) VALUES ($1, $2) ON CONFLICT (entity_id, source_review_id) DO NOTHING", query)
	assert.Equal(t, []any{"e1", "r1"}, args)
}

func TestLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql", "000003_photos.up.sql", "000002_x.up.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	latest, err := latestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	_, err = latestVersion(t.TempDir())
	assert.Error(t, err)
}
