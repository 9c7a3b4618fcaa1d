// Package gitref resolves human git refs (branches, tags, short
// hashes) against a local repository so snapshots can be registered
// under both the full commit hash and the ref they were requested by.
package gitref

import (
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Commit describes a resolved commit.
type Commit struct {
	Hash string
	Ref  string
	Time time.Time
}

// Resolve maps ref to a full commit in the repository at repoPath.
// "HEAD", branch names, tag names and abbreviated hashes all work;
// the returned Commit keeps the original ref spelling.
func Resolve(repoPath, ref string) (Commit, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return Commit{}, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return Commit{}, fmt.Errorf("resolving ref %q: %w", ref, err)
	}

	obj, err := repo.CommitObject(*hash)
	if err != nil {
		return Commit{}, fmt.Errorf("reading commit %s: %w", hash, err)
	}

	return Commit{
		Hash: hash.String(),
		Ref:  ref,
		Time: obj.Committer.When.UTC(),
	}, nil
}

// Head resolves the repository's current HEAD commit.
func Head(repoPath string) (Commit, error) {
	return Resolve(repoPath, "HEAD")
}
