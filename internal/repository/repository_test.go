package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"file-processor/internal/model"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.StoredFile{}, &model.SchemaObject{}, &model.SchemaField{}))
	return db
}

func TestFileRepository_CreateAssignsID(t *testing.T) {
	repo := NewFileRepository(newTestDB(t))
	ctx := context.Background()

	record := &model.StoredFile{
		FileName:   "report.pdf",
		StoredPath: "/data/files/t1/file_processor/abc.pdf",
		Size:       1024,
		Type:       "application/pdf",
		Info:       datatypes.JSON(`{"source":"web"}`),
		ObjectID:   "0b6f6f0e-5a63-4e59-9c55-6c9f1b3e1f10",
		FieldID:    "f1",
		UploadedBy: "u1",
	}
	require.NoError(t, repo.Create(ctx, record))
	require.NotEmpty(t, record.ID)

	var found model.StoredFile
	require.NoError(t, repo.(*fileRepository).db.First(&found, "id = ?", record.ID).Error)
	assert.Equal(t, record.StoredPath, found.StoredPath)
	assert.JSONEq(t, `{"source":"web"}`, string(found.Info))

	exists, err := repo.ExistsByStoredPath(ctx, record.StoredPath)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByStoredPath(ctx, "/nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSchemaRepository_FindObjectsByTenant(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&model.SchemaObject{
		ID: "obj-1", TenantID: "t1", Name: "Contacts",
		Fields: []model.SchemaField{{ID: "photo", Key: "photo", Type: "image"}},
	}).Error)
	require.NoError(t, db.Create(&model.SchemaObject{ID: "obj-2", TenantID: "t2", Name: "Other"}).Error)

	objects, err := NewSchemaRepository(db).FindObjectsByTenant(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "obj-1", objects[0].ID)
	require.Len(t, objects[0].Fields, 1)
	assert.Equal(t, "photo", objects[0].Fields[0].ID)
}

func TestOutcomeRepository_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := NewOutcomeRepository(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	_, found, err := repo.GetRecordID(ctx, "t1", "req-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SaveRecordID(ctx, "t1", "req-1", "rec-1"))
	id, found, err := repo.GetRecordID(ctx, "t1", "req-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "rec-1", id)
	assert.True(t, mr.TTL("file_processor:upload:t1:req-1") > 0)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"lock wait", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1205}), true},
		{"duplicate key", &mysql.MySQLError{Number: 1062}, false},
		{"bad conn", driver.ErrBadConn, true},
		{"invalid conn after send", mysql.ErrInvalidConn, false},
		{"unexpected eof", io.ErrUnexpectedEOF, false},
		{"lost connection during query", &mysql.MySQLError{Number: 2013}, false},
		{"server gone", &mysql.MySQLError{Number: 2006}, false},
		{"read timeout", &net.OpError{Op: "read", Err: errors.New("i/o timeout")}, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}
