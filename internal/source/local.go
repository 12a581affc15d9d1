package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sprite-ai/glim/internal/diff"
	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/staging"
)

// emptyTree is git's well-known empty tree object, the diff base of a
// repository without commits.
const emptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Local reviews the working tree and index of a git repository against HEAD.
type Local struct {
	Root string
	opts Options
	repo *git.Repository
}

// NewLocal opens the repository containing dir.
func NewLocal(dir string, opts Options) (*Local, error) {
	repo, root, err := open(dir)
	if err != nil {
		return nil, err
	}
	return &Local{Root: root, opts: opts, repo: repo}, nil
}

// RepoRoot returns the working tree root of the repository containing dir.
func RepoRoot(dir string) (string, error) {
	_, root, err := open(dir)
	return root, err
}

func open(dir string) (*git.Repository, string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, "", fmt.Errorf("%s: %w", dir, ErrNotRepository)
		}
		return nil, "", fmt.Errorf("opening repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have nothing to review.
		return nil, "", fmt.Errorf("%s: %w: %v", dir, ErrNotRepository, err)
	}
	return repo, wt.Filesystem.Root(), nil
}

// Load diffs the working tree against HEAD and attaches both file versions.
func (l *Local) Load(ctx context.Context) (*Session, error) {
	info := Info{
		Repo:        filepath.Base(l.Root),
		Description: "Local working tree changes",
	}

	base := emptyTree
	var tree *object.Tree
	head, err := l.repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		info.Branch = "(no commits)"
	case err != nil:
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	default:
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		} else {
			info.Branch = head.Hash().String()[:7]
		}
		commit, err := l.repo.CommitObject(head.Hash())
		if err != nil {
			return nil, fmt.Errorf("reading HEAD commit: %w", err)
		}
		if tree, err = commit.Tree(); err != nil {
			return nil, fmt.Errorf("reading HEAD tree: %w", err)
		}
		base = "HEAD"
	}

	raw, err := diff.GitDiffWorkingTree(ctx, l.Root, base, l.opts.Context)
	if err != nil {
		return nil, err
	}
	set, err := diff.Parse(raw)
	if err != nil {
		return nil, err
	}

	cached, err := l.cachedHunks(ctx, base)
	if err != nil {
		return nil, err
	}

	files := l.opts.filter(set, &info)
	for i := range files {
		fd := &files[i]
		if fd.IsBinary {
			continue
		}
		if !fd.IsNew && tree != nil {
			fd.Pre = l.headVersion(tree, fd)
		}
		if !fd.IsDeleted {
			fd.Post = l.workVersion(fd.Path)
		}
		fd.Cached = cached[fd.Path]
	}
	return &Session{Info: info, Files: files}, nil
}

// cachedHunks diffs the index against base and returns the hunks by path.
func (l *Local) cachedHunks(ctx context.Context, base string) (map[string][]model.Hunk, error) {
	raw, err := diff.GitDiff(ctx, l.Root, "--cached", "-M", "-U0", base)
	if err != nil {
		return nil, err
	}
	set, err := diff.Parse(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.Hunk, len(set.Files))
	for _, fd := range set.Files {
		out[fd.Path] = fd.Hunks
	}
	return out, nil
}

func (l *Local) headVersion(tree *object.Tree, fd *model.FileDiff) *model.FileVersion {
	path := fd.Path
	if fd.OldPath != "" {
		path = fd.OldPath
	}
	f, err := tree.File(path)
	if err != nil {
		l.opts.logger().Warn("reading HEAD blob", "path", path, "err", err)
		return nil
	}
	content, err := f.Contents()
	if err != nil {
		l.opts.logger().Warn("reading HEAD blob", "path", path, "err", err)
		return nil
	}
	return model.NewFileVersion(path, []byte(content))
}

func (l *Local) workVersion(path string) *model.FileVersion {
	content, err := os.ReadFile(filepath.Join(l.Root, filepath.FromSlash(path)))
	if err != nil {
		l.opts.logger().Warn("reading working tree file", "path", path, "err", err)
		return nil
	}
	return model.NewFileVersion(path, content)
}

// WriteIndex replaces the index entries of the given paths. Blobs go into the
// object store first; the entries are then swapped in by one
// `git update-index --index-info` run, so a failed blob write leaves the index
// untouched.
func (l *Local) WriteIndex(ctx context.Context, entries []staging.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var info bytes.Buffer
	var intent []string
	for _, e := range entries {
		if e.Remove {
			fmt.Fprintf(&info, "0 %s\t%s\x00", plumbing.ZeroHash, e.Path)
			if e.IntentToAdd {
				intent = append(intent, e.Path)
			}
			continue
		}
		h, err := l.writeBlob(e.Content)
		if err != nil {
			return fmt.Errorf("writing blob for %s: %w", e.Path, err)
		}
		fmt.Fprintf(&info, "%s %s\t%s\x00", e.Mode, h, e.Path)
	}
	if err := l.git(ctx, &info, "update-index", "-z", "--index-info"); err != nil {
		return err
	}
	if len(intent) > 0 {
		args := append([]string{"add", "--intent-to-add", "--"}, intent...)
		if err := l.git(ctx, nil, args...); err != nil {
			return err
		}
	}
	l.opts.logger().Debug("index written", "entries", len(entries))
	return nil
}

func (l *Local) writeBlob(content []byte) (plumbing.Hash, error) {
	obj := l.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(content)))
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return l.repo.Storer.SetEncodedObject(obj)
}

func (l *Local) git(ctx context.Context, stdin io.Reader, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = l.Root
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
