package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sprite-ai/glim/internal/diff"
	"github.com/sprite-ai/glim/internal/engine"
	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/source"
)

var errDiffRequired = errors.New("diff or repo_dir is required")

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Session input ---

type contentJSON struct {
	Pre  *string `json:"pre,omitempty"`
	Post *string `json:"post,omitempty"`
}

type commentJSON struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Author string `json:"author,omitempty"`
	Body   string `json:"body"`
}

// loadRequest names the changes to review: a unified diff with optional file
// contents, or a local repository whose working tree is diffed.
type loadRequest struct {
	Diff     string                 `json:"diff,omitempty"`
	Contents map[string]contentJSON `json:"contents,omitempty"`
	RepoDir  string                 `json:"repo_dir,omitempty"`
	Comments []commentJSON          `json:"comments,omitempty"`
}

func (s *Server) loadSession(ctx context.Context, req loadRequest) (*source.Session, error) {
	var session *source.Session
	if req.RepoDir != "" {
		l, err := source.NewLocal(req.RepoDir, s.cfg.Source)
		if err != nil {
			return nil, err
		}
		if session, err = l.Load(ctx); err != nil {
			return nil, err
		}
	} else {
		if req.Diff == "" {
			return nil, errDiffRequired
		}
		ds, err := diff.Parse(req.Diff)
		if err != nil {
			return nil, err
		}
		session = &source.Session{Info: source.Info{Repo: "(request)", Description: "Submitted diff"}}
		for _, fd := range ds.Files {
			if s.cfg.Source.Ignored != nil && s.cfg.Source.Ignored(fd.Path) {
				continue
			}
			if c, ok := req.Contents[fd.Path]; ok {
				if c.Pre != nil && !fd.IsNew {
					fd.Pre = model.NewFileVersion(fd.Path, []byte(*c.Pre))
				}
				if c.Post != nil && !fd.IsDeleted {
					fd.Post = model.NewFileVersion(fd.Path, []byte(*c.Post))
				}
			}
			a, r := fd.Counts()
			session.Info.Added += a
			session.Info.Removed += r
			session.Files = append(session.Files, fd)
		}
		session.Info.Files = len(session.Files)
	}
	for _, c := range req.Comments {
		session.Comments = append(session.Comments, model.Comment{Path: c.Path, Line: c.Line, Author: c.Author, Body: c.Body})
	}
	return session, nil
}

func (s *Server) buildEngine(ctx context.Context, session *source.Session) (*engine.Engine, error) {
	eng := engine.New(s.cfg.Parser, s.cfg.Engine, s.log)
	if err := eng.Build(ctx, session.Files); err != nil {
		return nil, fmt.Errorf("analyzing: %w", err)
	}
	eng.SetComments(session.Comments)
	return eng, nil
}

// load decodes the request body, loads the session and analyzes it. It writes
// the error response itself and returns nil on failure.
func (s *Server) load(w http.ResponseWriter, r *http.Request, req *loadRequest, body any) (*source.Session, *engine.Engine) {
	if err := readJSON(r, body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return nil, nil
	}
	session, err := s.loadSession(r.Context(), *req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return nil, nil
	}
	eng, err := s.buildEngine(r.Context(), session)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil
	}
	return session, eng
}

// --- Response types ---

type infoJSON struct {
	Repo        string `json:"repo"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Stats       string `json:"stats"`
}

type statsJSON struct {
	Files   int `json:"files"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

type galaxyEntryJSON struct {
	Path          string  `json:"path"`
	Churn         float64 `json:"churn"`
	Added         int     `json:"added"`
	Removed       int     `json:"removed"`
	StagedAdded   int     `json:"staged_added"`
	StagedRemoved int     `json:"staged_removed"`
	Stage         string  `json:"stage"`
	CosmeticOnly  bool    `json:"cosmetic_only,omitempty"`
	Pending       bool    `json:"pending,omitempty"`
	Comments      int     `json:"comments,omitempty"`
	Error         string  `json:"error,omitempty"`
}

type dirJSON struct {
	Dir   string  `json:"dir"`
	Heat  float64 `json:"heat"`
	Files int     `json:"files"`
}

type galaxyResponse struct {
	Info        infoJSON          `json:"info"`
	Stats       statsJSON         `json:"stats"`
	Files       []galaxyEntryJSON `json:"files"`
	Directories []dirJSON         `json:"directories"`
}

type nodeJSON struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	Kind          string  `json:"kind"`
	Depth         int     `json:"depth"`
	Relation      string  `json:"relation"`
	Confidence    float64 `json:"confidence"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Added         int     `json:"added"`
	Removed       int     `json:"removed"`
	Cosmetic      int     `json:"cosmetic"`
	StagedAdded   int     `json:"staged_added"`
	StagedRemoved int     `json:"staged_removed"`
	Stage         string  `json:"stage"`
	Comments      int     `json:"comments,omitempty"`
}

type structureResponse struct {
	Path    string     `json:"path"`
	Symbols []nodeJSON `json:"symbols"`
}

type lineJSON struct {
	Hunk    int    `json:"hunk"`
	Index   int    `json:"index"`
	Op      string `json:"op"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
	Label   string `json:"label"`
	Staged  bool   `json:"staged,omitempty"`
}

type blockJSON struct {
	Cosmetic bool       `json:"cosmetic"`
	Lines    []lineJSON `json:"lines"`
}

type logicHunkJSON struct {
	Index   int         `json:"index"`
	Header  string      `json:"header"`
	Context string      `json:"context,omitempty"`
	Blocks  []blockJSON `json:"blocks"`
}

type logicResponse struct {
	Path   string          `json:"path"`
	Symbol nodeJSON        `json:"symbol"`
	Hunks  []logicHunkJSON `json:"hunks"`
}

func toInfo(i source.Info) infoJSON {
	return infoJSON{Repo: i.Repo, Title: i.Title(), Description: i.Description, Stats: i.StatsLine()}
}

func toGalaxy(info source.Info, eng *engine.Engine) galaxyResponse {
	files, added, removed := eng.Stats()
	resp := galaxyResponse{
		Info:  toInfo(info),
		Stats: statsJSON{Files: files, Added: added, Removed: removed},
	}
	for _, g := range eng.Galaxy() {
		e := galaxyEntryJSON{
			Path:          g.Impact.Path,
			Churn:         g.Impact.ChurnScore,
			Added:         g.Impact.Added,
			Removed:       g.Impact.Removed,
			StagedAdded:   g.Impact.StagedAdded,
			StagedRemoved: g.Impact.StagedRemoved,
			Stage:         g.Impact.Stage().String(),
			CosmeticOnly:  g.Impact.HasCosmeticOnly,
			Pending:       g.Pending,
			Comments:      g.Comments,
		}
		if g.Impact.Err != nil {
			e.Error = g.Impact.Err.Error()
		}
		resp.Files = append(resp.Files, e)
	}
	for _, d := range eng.Directories() {
		resp.Directories = append(resp.Directories, dirJSON{Dir: d.Dir, Heat: d.Heat, Files: d.Files})
	}
	return resp
}

func toNode(n engine.Node) nodeJSON {
	return nodeJSON{
		Key:           n.Key,
		Name:          n.Name,
		Kind:          n.Kind.String(),
		Depth:         n.Depth,
		Relation:      n.Relation.String(),
		Confidence:    n.Confidence,
		Start:         n.Span.Start,
		End:           n.Span.End,
		Added:         n.Added,
		Removed:       n.Removed,
		Cosmetic:      n.Cosmetic,
		StagedAdded:   n.Staged.Added,
		StagedRemoved: n.Staged.Removed,
		Stage:         n.Stage().String(),
		Comments:      n.Comments,
	}
}

func toStructure(path string, nodes []engine.Node) structureResponse {
	resp := structureResponse{Path: path, Symbols: make([]nodeJSON, 0, len(nodes))}
	for _, n := range nodes {
		resp.Symbols = append(resp.Symbols, toNode(n))
	}
	return resp
}

func toLogic(v *engine.LogicView) logicResponse {
	resp := logicResponse{Path: v.Path, Symbol: toNode(v.Node)}
	for _, h := range v.Hunks {
		hj := logicHunkJSON{Index: h.Index, Header: h.Header, Context: h.Context}
		for _, b := range h.Blocks {
			bj := blockJSON{Cosmetic: b.Cosmetic}
			for _, l := range b.Lines {
				bj.Lines = append(bj.Lines, lineJSON{
					Hunk:    l.Hunk,
					Index:   l.Index,
					Op:      l.Op.String(),
					Text:    l.Text,
					OldLine: l.OldLine,
					NewLine: l.NewLine,
					Label:   l.Label.String(),
					Staged:  l.Staged,
				})
			}
			hj.Blocks = append(hj.Blocks, bj)
		}
		resp.Hunks = append(resp.Hunks, hj)
	}
	return resp
}

// --- Galaxy ---

func (s *Server) handleGalaxy(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	session, eng := s.load(w, r, &req, &req)
	if eng == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, toGalaxy(session.Info, eng))
}

// --- Structure ---

type structureRequest struct {
	loadRequest
	Path string `json:"path"`
	All  bool   `json:"all,omitempty"`
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	_, eng := s.load(w, r, &req.loadRequest, &req)
	if eng == nil {
		return
	}
	nodes, err := eng.Structure(req.Path, req.All)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toStructure(req.Path, nodes))
}

// --- Logic ---

type logicRequest struct {
	loadRequest
	Path   string `json:"path"`
	Symbol string `json:"symbol"`
}

func (s *Server) handleLogic(w http.ResponseWriter, r *http.Request) {
	var req logicRequest
	_, eng := s.load(w, r, &req.loadRequest, &req)
	if eng == nil {
		return
	}
	v, err := eng.Logic(req.Path, req.Symbol)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toLogic(v))
}
