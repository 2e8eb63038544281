package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkoski/flowdeps/internal/modelindex"
)

func setupStore(t *testing.T) *modelindex.Store {
	t.Helper()

	manager, err := modelindex.NewSQLiteManager(modelindex.Config{
		Path: filepath.Join(t.TempDir(), "scanner_test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() {
		require.NoError(t, manager.Close())
	})
	return modelindex.NewStore(manager.DB())
}

func writeModel(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func testScanner(t *testing.T, store *modelindex.Store, root string) *Scanner {
	t.Helper()
	return New(store, Config{
		Root:       root,
		Extensions: []string{".safetensors", ".ckpt", ".pt"},
		Workers:    2,
	})
}

func TestScanIndexesNewFiles(t *testing.T) {
	store := setupStore(t)
	root := t.TempDir()
	writeModel(t, root, "checkpoints/model.safetensors", "checkpoint-bytes")
	writeModel(t, root, "loras/style.safetensors", "lora-bytes")
	writeModel(t, root, "checkpoints/readme.txt", "not a model")

	result, err := testScanner(t, store, root).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Hashed)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Removed)

	ctx := context.Background()
	rows, err := store.FindByRelativePath(ctx, "checkpoints/model.safetensors")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sha256Hex("checkpoint-bytes"), rows[0].Hash)
	assert.Equal(t, int64(len("checkpoint-bytes")), rows[0].FileSize)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalModels)
	assert.Equal(t, int64(2), stats.TotalLocations)
}

func TestScanSkipsUnchangedFiles(t *testing.T) {
	store := setupStore(t)
	root := t.TempDir()
	writeModel(t, root, "checkpoints/model.safetensors", "checkpoint-bytes")

	sc := testScanner(t, store, root)
	ctx := context.Background()

	first, err := sc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Hashed)

	second, err := sc.Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Hashed)
	assert.Equal(t, 1, second.Skipped)
}

func TestScanRefreshesLastSeenOnUnchangedFiles(t *testing.T) {
	store := setupStore(t)
	root := t.TempDir()
	writeModel(t, root, "checkpoints/model.safetensors", "checkpoint-bytes")

	sc := testScanner(t, store, root)
	ctx := context.Background()
	_, err := sc.Scan(ctx)
	require.NoError(t, err)

	// Backdate the sighting, then rescan; the unchanged fast path must
	// still bring last-seen forward.
	stale := time.Now().Add(-24 * time.Hour)
	require.NoError(t, store.TouchLocation(ctx, "checkpoints/model.safetensors", stale))

	result, err := sc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)

	locations, err := store.GetAllLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.True(t, locations[0].LastSeen.After(stale.Add(time.Hour)),
		"last seen %v not refreshed past %v", locations[0].LastSeen, stale)
}

func TestScanRehashesChangedFiles(t *testing.T) {
	store := setupStore(t)
	root := t.TempDir()
	writeModel(t, root, "checkpoints/model.safetensors", "old-bytes")

	sc := testScanner(t, store, root)
	ctx := context.Background()
	_, err := sc.Scan(ctx)
	require.NoError(t, err)

	writeModel(t, root, "checkpoints/model.safetensors", "new-bytes-longer")
	// Force a distinct mtime even on coarse filesystem clocks.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(
		filepath.Join(root, "checkpoints", "model.safetensors"), future, future))

	result, err := sc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Hashed)

	rows, err := store.FindByRelativePath(ctx, "checkpoints/model.safetensors")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sha256Hex("new-bytes-longer"), rows[0].Hash)
}

func TestScanRemovesStaleLocations(t *testing.T) {
	store := setupStore(t)
	root := t.TempDir()
	writeModel(t, root, "checkpoints/model.safetensors", "checkpoint-bytes")
	writeModel(t, root, "loras/style.safetensors", "lora-bytes")

	sc := testScanner(t, store, root)
	ctx := context.Background()
	_, err := sc.Scan(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "loras", "style.safetensors")))

	result, err := sc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	rows, err := store.FindByRelativePath(ctx, "loras/style.safetensors")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScanTracksMovedFiles(t *testing.T) {
	store := setupStore(t)
	root := t.TempDir()
	writeModel(t, root, "checkpoints/model.safetensors", "checkpoint-bytes")

	sc := testScanner(t, store, root)
	ctx := context.Background()
	_, err := sc.Scan(ctx)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "checkpoints", "sd15"), 0o755))
	require.NoError(t, os.Rename(
		filepath.Join(root, "checkpoints", "model.safetensors"),
		filepath.Join(root, "checkpoints", "sd15", "model.safetensors")))

	_, err = sc.Scan(ctx)
	require.NoError(t, err)

	// Same content hash, new location; the old path is gone.
	rows, err := store.FindModelByHash(ctx, sha256Hex("checkpoint-bytes"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "checkpoints/sd15/model.safetensors", rows[0].RelativePath)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalModels)
	assert.Equal(t, int64(1), stats.TotalLocations)
}

func TestScanMissingRoot(t *testing.T) {
	store := setupStore(t)
	sc := testScanner(t, store, filepath.Join(t.TempDir(), "does-not-exist"))

	_, err := sc.Scan(context.Background())
	assert.Error(t, err)
}
