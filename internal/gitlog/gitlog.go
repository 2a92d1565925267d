// Package gitlog backfills GitCommit rows from a project's actual working
// tree, supplementing whatever commits a transcript happens to mention
// (SPEC_FULL.md's go-git feature supplement to spec §3).
package gitlog

import (
	"encoding/json"
	"io"

	"github.com/go-git/go-git/v5"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"

	"github.com/kittclouds/memctl/internal/errs"
	"github.com/kittclouds/memctl/internal/store"
)

// Commit is one discovered commit, prior to project-id resolution.
type Commit struct {
	Hash             string
	Message          string
	Author           string
	TimestampMS      int64
	Branch           string
	FilesChangedJSON string
}

// Walk opens the git repository rooted at workingDir (or one of its
// ancestors) and returns up to limit most-recent commits reachable from
// HEAD. A directory with no repository, or a repository whose HEAD cannot
// be resolved (no commits yet), is not an error: it yields an empty slice,
// since not every ingested project path is a git checkout. Any other
// failure to open the repository is returned as an Io error.
func Walk(workingDir string, limit int) ([]Commit, error) {
	repo, err := git.PlainOpenWithOptions(workingDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, nil
		}
		return nil, errs.Wrap(errs.Io, "gitlog.Walk", "opening repository", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, nil
	}
	branch := ""
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, errs.Wrap(errs.Io, "gitlog.Walk", "opening log", err)
	}

	var out []Commit
	count := 0
	err = iter.ForEach(func(c *gitobject.Commit) error {
		if limit > 0 && count >= limit {
			return io.EOF
		}
		count++

		files, ferr := changedFiles(c)
		if ferr != nil {
			files = nil // a diff failure (e.g. merge commit) just drops the file list, never aborts the walk
		}
		filesJSON, _ := json.Marshal(files)

		out = append(out, Commit{
			Hash:             c.Hash.String(),
			Message:          c.Message,
			Author:           c.Author.Name,
			TimestampMS:      c.Author.When.UnixMilli(),
			Branch:           branch,
			FilesChangedJSON: string(filesJSON),
		})
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.Io, "gitlog.Walk", "iterating log", err)
	}
	return out, nil
}

func changedFiles(c *gitobject.Commit) ([]string, error) {
	parent, err := c.Parent(0)
	if err != nil {
		// Root commit: every file in the tree counts as changed.
		tree, terr := c.Tree()
		if terr != nil {
			return nil, terr
		}
		var files []string
		err = tree.Files().ForEach(func(f *gitobject.File) error {
			files = append(files, f.Name)
			return nil
		})
		return files, err
	}

	patch, err := parent.Patch(c)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, fp := range patch.FilePatches() {
		_, to := fp.Files()
		if to != nil {
			files = append(files, to.Path())
		}
	}
	return files, nil
}

// ToStoreRows converts discovered commits into store.GitCommit rows scoped
// to projectID, ready for StoreGitCommits.
func ToStoreRows(projectID int64, commits []Commit) []*store.GitCommit {
	out := make([]*store.GitCommit, 0, len(commits))
	for _, c := range commits {
		out = append(out, &store.GitCommit{
			ProjectID:        projectID,
			Hash:             c.Hash,
			Message:          c.Message,
			Author:           c.Author,
			Timestamp:        c.TimestampMS,
			Branch:           c.Branch,
			FilesChangedJSON: c.FilesChangedJSON,
		})
	}
	return out
}
