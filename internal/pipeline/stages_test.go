package pipeline

import (
	"context"
	"errors"
	"file-processor/internal/model"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		objects: map[string]map[string]bool{
			"obj-1": {"photo": true},
		},
	}
}

type fakeCatalog struct {
	objects map[string]map[string]bool
}

func (c *fakeCatalog) ObjectByID(objectID string) (*model.SchemaObject, bool) {
	if _, ok := c.objects[objectID]; !ok {
		return nil, false
	}
	return &model.SchemaObject{ID: objectID}, true
}

func (c *fakeCatalog) FieldByID(objectID, fieldID string) (*model.SchemaField, bool) {
	if !c.objects[objectID][fieldID] {
		return nil, false
	}
	return &model.SchemaField{ID: fieldID, ObjectID: objectID}, true
}

func TestReferenceValidator(t *testing.T) {
	v := ReferenceValidator{}
	cat := testCatalog()

	assert.NoError(t, v.Validate(cat, "obj-1", "photo"))
	assert.NoError(t, v.Validate(cat, "obj-1", DefaultImageField))
	assert.ErrorIs(t, v.Validate(cat, "does-not-exist", "photo"), ErrUnknownObject)
	assert.ErrorIs(t, v.Validate(cat, "does-not-exist", DefaultImageField), ErrUnknownObject)

	err := v.Validate(cat, "obj-1", "resume")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "resume")
}

func TestClamAV_ExitCodes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "upload.bin")

	assert.NoError(t, NewClamAV("true", time.Second).Scan(ctx, path))

	err := NewClamAV("false", time.Second).Scan(ctx, path)
	assert.ErrorIs(t, err, ErrMalwareDetected)
	assert.NotErrorIs(t, err, ErrScanFailed)

	// sh 无法打开不存在的脚本文件，退出码非 0 且非 1
	err = NewClamAV("sh", time.Second).Scan(ctx, path)
	assert.ErrorIs(t, err, ErrScanFailed)
	assert.NotErrorIs(t, err, ErrMalwareDetected)

	err = NewClamAV("definitely-not-a-real-scanner-binary", time.Second).Scan(ctx, path)
	assert.ErrorIs(t, err, ErrScanFailed)
}

type countingScanner struct {
	calls int
	err   error
}

func (s *countingScanner) Scan(ctx context.Context, path string) error {
	s.calls++
	return s.err
}

func TestMalwareGate_Disabled(t *testing.T) {
	scanner := &countingScanner{err: ErrMalwareDetected}
	gate := NewMalwareGate(false, scanner)

	assert.NoError(t, gate.Check(context.Background(), "/tmp/anything"))
	assert.Zero(t, scanner.calls)
}

func TestMalwareGate_Enabled(t *testing.T) {
	scanner := &countingScanner{err: ErrMalwareDetected}
	gate := NewMalwareGate(true, scanner)

	assert.ErrorIs(t, gate.Check(context.Background(), "/tmp/anything"), ErrMalwareDetected)
	assert.Equal(t, 1, scanner.calls)
}

func TestDirectoryPreparer_ConcurrentCreate(t *testing.T) {
	fs := afero.NewOsFs()
	dir := filepath.Join(t.TempDir(), "tenant", "file_processor")
	p := NewDirectoryPreparer(fs)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Ensure(dir)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, p.Ensure(dir))
}

func TestDirectoryPreparer_Failure(t *testing.T) {
	p := NewDirectoryPreparer(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	assert.Error(t, p.Ensure("/data/files/t1"))
}

func TestRelocator_MovesFile(t *testing.T) {
	root := t.TempDir()
	tempPath := filepath.Join(root, "tmp", "abc.pdf")
	destDir := filepath.Join(root, "files")
	require.NoError(t, os.MkdirAll(filepath.Dir(tempPath), 0o755))
	require.NoError(t, os.MkdirAll(destDir, 0o755))
	require.NoError(t, os.WriteFile(tempPath, []byte("%PDF-1.4 body"), 0o600))

	finalPath, err := NewRelocator(afero.NewOsFs()).Relocate(tempPath, destDir, "abc.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "abc.pdf"), finalPath)

	body, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(body))
	_, err = os.Stat(tempPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRelocator_ResetsModTime(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmp/t1/a.pdf", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/files/t1/file_processor", 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, fs.Chtimes("/tmp/t1/a.pdf", old, old))

	before := time.Now()
	finalPath, err := NewRelocator(fs).Relocate("/tmp/t1/a.pdf", "/files/t1/file_processor", "a.pdf")
	require.NoError(t, err)

	info, err := fs.Stat(finalPath)
	require.NoError(t, err)
	assert.False(t, info.ModTime().Before(before.Truncate(time.Second)))
}

func TestRelocator_MissingSourceLeavesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/files", 0o755))

	_, err := NewRelocator(fs).Relocate("/tmp/missing.pdf", "/files", "missing.pdf")
	assert.Error(t, err)
	exists, _ := afero.Exists(fs, "/files/missing.pdf")
	assert.False(t, exists)
}

func TestRetryPolicy(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		attempts, err := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond}.Do(ctx, func(context.Context) error {
			calls++
			if calls < 3 {
				return boom
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops at max attempts", func(t *testing.T) {
		attempts, err := RetryPolicy{MaxAttempts: 4, InitialInterval: time.Millisecond}.Do(ctx, func(context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 4, attempts)
	})

	t.Run("non retryable error stops immediately", func(t *testing.T) {
		policy := RetryPolicy{
			MaxAttempts:     5,
			InitialInterval: time.Millisecond,
			Retryable:       func(err error) bool { return false },
		}
		attempts, err := policy.Do(ctx, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, attempts)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		attempts, err := RetryPolicy{}.Do(ctx, func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})
}

func TestKind_Incident(t *testing.T) {
	assert.False(t, KindUnknownObject.Incident())
	assert.False(t, KindUnknownField.Incident())
	assert.False(t, KindMalwareDetected.Incident())
	assert.True(t, KindScanSystemFailure.Incident())
	assert.True(t, KindSystemFailure.Incident())
	assert.True(t, KindPersistenceFailure.Incident())
}
