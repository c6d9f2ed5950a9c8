package service

import (
	"context"
	"file-processor/internal/model"
	"file-processor/internal/pipeline"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pathIndex map[string]bool

func (p pathIndex) Create(ctx context.Context, record *model.StoredFile) error {
	p[record.StoredPath] = true
	return nil
}

func (p pathIndex) ExistsByStoredPath(ctx context.Context, storedPath string) (bool, error) {
	return p[storedPath], nil
}

func TestReconcile(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)
	dir := "/data/files/t1/file_processor/"

	setup := func(t *testing.T) (*reconcileService, afero.Fs) {
		fs := afero.NewMemMapFs()
		for name, mtime := range map[string]time.Time{
			"kept.pdf":   old,
			"orphan.pdf": old,
			"fresh.pdf":  now.Add(-time.Minute),
		} {
			require.NoError(t, afero.WriteFile(fs, dir+name, []byte("x"), 0o644))
			require.NoError(t, fs.Chtimes(dir+name, mtime, mtime))
		}
		index := pathIndex{dir + "kept.pdf": true}
		svc := NewReconcileService(index, testPaths, fs, 24*time.Hour).(*reconcileService)
		svc.now = func() time.Time { return now }
		return svc, fs
	}

	t.Run("find reports only old unreferenced files", func(t *testing.T) {
		svc, _ := setup(t)
		orphans, err := svc.FindOrphans(context.Background(), "t1")
		require.NoError(t, err)
		require.Len(t, orphans, 1)
		assert.Equal(t, dir+"orphan.pdf", orphans[0].Path)
	})

	t.Run("remove deletes orphans only", func(t *testing.T) {
		svc, fs := setup(t)
		removed, err := svc.RemoveOrphans(context.Background(), "t1")
		require.NoError(t, err)
		assert.Len(t, removed, 1)

		for name, want := range map[string]bool{"kept.pdf": true, "orphan.pdf": false, "fresh.pdf": true} {
			exists, _ := afero.Exists(fs, dir+name)
			assert.Equal(t, want, exists, name)
		}
	})

	t.Run("missing tenant directory", func(t *testing.T) {
		svc, _ := setup(t)
		orphans, err := svc.FindOrphans(context.Background(), "t2")
		require.NoError(t, err)
		assert.Empty(t, orphans)
	})

	t.Run("invalid tenant", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.FindOrphans(context.Background(), "..")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestReconcile_JustRelocatedFileIsNotOrphan(t *testing.T) {
	fs := afero.NewMemMapFs()
	tempPath, err := testPaths.TempPath("t1", "a.pdf")
	require.NoError(t, err)
	destDir, err := testPaths.DestPath("t1")
	require.NoError(t, err)

	// 临时文件在积压中停留了很久。
	require.NoError(t, afero.WriteFile(fs, tempPath, []byte("x"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, fs.Chtimes(tempPath, old, old))

	require.NoError(t, pipeline.NewDirectoryPreparer(fs).Ensure(destDir))
	_, err = pipeline.NewRelocator(fs).Relocate(tempPath, destDir, "a.pdf")
	require.NoError(t, err)

	// 元数据仍在重试写入中，记录尚不存在。
	svc := NewReconcileService(pathIndex{}, testPaths, fs, 24*time.Hour)
	orphans, err := svc.RemoveOrphans(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, orphans)

	exists, _ := afero.Exists(fs, destDir+"/a.pdf")
	assert.True(t, exists)
}
