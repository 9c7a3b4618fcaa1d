package gitref

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("scry"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("readme.txt")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "tester",
			Email: "tester@example.com",
			When:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	_, err = repo.CreateTag("v1.0", hash, nil)
	require.NoError(t, err)

	return dir, hash.String()
}

func TestResolve(t *testing.T) {
	t.Parallel()

	dir, hash := initRepo(t)

	t.Run("Head", func(t *testing.T) {
		c, err := Head(dir)
		require.NoError(t, err)
		assert.Equal(t, hash, c.Hash)
		assert.Equal(t, "HEAD", c.Ref)
		assert.Equal(t, 2026, c.Time.Year())
	})

	t.Run("Tag", func(t *testing.T) {
		c, err := Resolve(dir, "v1.0")
		require.NoError(t, err)
		assert.Equal(t, hash, c.Hash)
		assert.Equal(t, "v1.0", c.Ref)
	})

	t.Run("ShortHash", func(t *testing.T) {
		c, err := Resolve(dir, hash[:8])
		require.NoError(t, err)
		assert.Equal(t, hash, c.Hash)
	})

	t.Run("UnknownRef", func(t *testing.T) {
		_, err := Resolve(dir, "no-such-branch")
		assert.Error(t, err)
	})

	t.Run("NotARepo", func(t *testing.T) {
		_, err := Resolve(t.TempDir(), "HEAD")
		assert.Error(t, err)
	})
}
