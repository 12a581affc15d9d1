package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/glim/internal/diff"
	"github.com/sprite-ai/glim/internal/model"
)

// PRRef identifies a pull request.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r PRRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

func (r PRRef) slug() string { return r.Owner + "/" + r.Repo }

var (
	shortRef = regexp.MustCompile(`^([\w.-]+)/([\w.-]+)#(\d+)$`)
	urlRef   = regexp.MustCompile(`^https?://github\.com/([\w.-]+)/([\w.-]+)/pull/(\d+)/?$`)
)

// ParsePRRef accepts "owner/repo#123" or a github.com pull request URL.
func ParsePRRef(s string) (PRRef, error) {
	s = strings.TrimSpace(s)
	m := shortRef.FindStringSubmatch(s)
	if m == nil {
		m = urlRef.FindStringSubmatch(s)
	}
	if m == nil {
		return PRRef{}, fmt.Errorf("%w: %q (want owner/repo#number)", ErrBadPRRef, s)
	}
	n, err := strconv.Atoi(m[3])
	if err != nil || n <= 0 {
		return PRRef{}, fmt.Errorf("%w: %q", ErrBadPRRef, s)
	}
	return PRRef{Owner: m[1], Repo: m[2], Number: n}, nil
}

// LooksLikePR reports whether arg should be treated as a pull request rather
// than a directory.
func LooksLikePR(arg string) bool {
	return shortRef.MatchString(arg) || urlRef.MatchString(arg)
}

// Runner executes a gh command and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// GH runs the gh CLI.
func GH(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("gh not found, install the GitHub CLI: %w", err)
		}
		return nil, fmt.Errorf("gh %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// PullRequest reviews a GitHub pull request.
type PullRequest struct {
	Ref  PRRef
	opts Options
	run  Runner
}

// NewPullRequest returns a source for ref. A nil runner uses GH.
func NewPullRequest(ref PRRef, opts Options, run Runner) *PullRequest {
	if run == nil {
		run = GH
	}
	return &PullRequest{Ref: ref, opts: opts, run: run}
}

type prView struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	State      string `json:"state"`
	BaseRefOid string `json:"baseRefOid"`
	HeadRefOid string `json:"headRefOid"`
	Author     struct {
		Login string `json:"login"`
	} `json:"author"`
	HeadRepository *struct {
		Name          string `json:"name"`
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"headRepository"`
}

type reviewComment struct {
	Path string `json:"path"`
	Line *int   `json:"line"`
	Body string `json:"body"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
}

// CheckAuth verifies gh is installed and logged in.
func (p *PullRequest) CheckAuth(ctx context.Context) error {
	if _, err := p.run(ctx, "auth", "status"); err != nil {
		return fmt.Errorf("GitHub CLI is not logged in, run 'gh auth login': %w", err)
	}
	return nil
}

// Load fetches the pull request's metadata, diff, file contents at the base and
// head commits, and review comments.
func (p *PullRequest) Load(ctx context.Context) (*Session, error) {
	num := strconv.Itoa(p.Ref.Number)
	out, err := p.run(ctx, "pr", "view", num, "--repo", p.Ref.slug(),
		"--json", "number,title,body,state,author,headRepository,baseRefOid,headRefOid")
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p.Ref, err)
	}
	var view prView
	if err := json.Unmarshal(out, &view); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", p.Ref, err)
	}

	raw, err := p.run(ctx, "pr", "diff", num, "--repo", p.Ref.slug())
	if err != nil {
		return nil, fmt.Errorf("fetching diff of %s: %w", p.Ref, err)
	}
	set, err := diff.Parse(string(raw))
	if err != nil {
		return nil, err
	}

	info := Info{
		Repo:        p.Ref.slug(),
		PR:          view.Number,
		Description: view.Title,
		Author:      view.Author.Login,
		State:       view.State,
	}
	if view.HeadRepository != nil && view.HeadRepository.NameWithOwner != "" {
		info.Repo = view.HeadRepository.NameWithOwner
	}
	files := p.opts.filter(set, &info)

	if err := p.attachVersions(ctx, files, view.BaseRefOid, view.HeadRefOid); err != nil {
		return nil, err
	}

	comments, err := p.comments(ctx)
	if err != nil {
		// Comments are decoration; the review still works without them.
		p.opts.logger().Warn("fetching review comments", "pr", p.Ref.String(), "err", err)
	}
	return &Session{Info: info, Files: files, Comments: comments}, nil
}

const fetchConcurrency = 8

// attachVersions fetches file contents concurrently. A file whose content cannot
// be fetched keeps a nil version and is reviewed as a plain line diff.
func (p *PullRequest) attachVersions(ctx context.Context, files []model.FileDiff, base, head string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := range files {
		fd := &files[i]
		if fd.IsBinary {
			continue
		}
		if !fd.IsNew && base != "" {
			path := fd.Path
			if fd.OldPath != "" {
				path = fd.OldPath
			}
			g.Go(func() error {
				fd.Pre = p.fetch(ctx, path, base)
				return ctx.Err()
			})
		}
		if !fd.IsDeleted && head != "" {
			g.Go(func() error {
				fd.Post = p.fetch(ctx, fd.Path, head)
				return ctx.Err()
			})
		}
	}
	return g.Wait()
}

func (p *PullRequest) fetch(ctx context.Context, path, ref string) *model.FileVersion {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	endpoint := fmt.Sprintf("repos/%s/contents/%s?ref=%s", p.Ref.slug(), strings.Join(segs, "/"), url.QueryEscape(ref))
	out, err := p.run(ctx, "api", "-H", "Accept: application/vnd.github.raw", endpoint)
	if err != nil {
		p.opts.logger().Warn("fetching file content", "path", path, "ref", ref, "err", err)
		return nil
	}
	return model.NewFileVersion(path, out)
}

func (p *PullRequest) comments(ctx context.Context) ([]model.Comment, error) {
	out, err := p.run(ctx, "api", "--paginate", fmt.Sprintf("repos/%s/pulls/%d/comments", p.Ref.slug(), p.Ref.Number))
	if err != nil {
		return nil, err
	}
	// --paginate prints one JSON array per page.
	dec := json.NewDecoder(bytes.NewReader(out))
	var comments []model.Comment
	for {
		var page []reviewComment
		if err := dec.Decode(&page); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return comments, fmt.Errorf("decoding review comments: %w", err)
		}
		for _, c := range page {
			// Outdated comments have no line on the current head.
			if c.Line == nil {
				continue
			}
			comments = append(comments, model.Comment{Path: c.Path, Line: *c.Line, Author: c.User.Login, Body: c.Body})
		}
	}
	return comments, nil
}
