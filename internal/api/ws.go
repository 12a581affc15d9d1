package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sprite-ai/glim/internal/engine"
	"github.com/sprite-ai/glim/internal/model"
	"github.com/sprite-ai/glim/internal/source"
	"github.com/sprite-ai/glim/internal/staging"
	"github.com/sprite-ai/glim/internal/zoom"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev; restrict in production
	},
}

// WebSocket message types from client.
const (
	wsMsgLoadDiff      = "load_diff"
	wsMsgStage         = "stage"
	wsMsgUnstage       = "unstage"
	wsMsgZoomIn        = "zoom_in"
	wsMsgZoomOut       = "zoom_out"
	wsMsgJump          = "jump"
	wsMsgEffectiveDiff = "effective_diff"
)

// WebSocket message types to client.
const (
	wsMsgSession = "session"
	wsMsgLoaded  = "loaded"
	wsMsgStaged  = "staged"
	wsMsgView    = "view"
	wsMsgError   = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsSessionResponse is sent once on connect.
type wsSessionResponse struct {
	ID string `json:"id"`
}

// wsStageMsg is the payload for stage/unstage. With Symbol set, every changed
// line of the symbol is affected; otherwise lines Start..End (0-based, inclusive)
// of hunk Hunk.
type wsStageMsg struct {
	Path   string `json:"path"`
	Symbol string `json:"symbol,omitempty"`
	Hunk   int    `json:"hunk"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// wsStagedResponse reports a file's staging state after a change.
type wsStagedResponse struct {
	Path  string          `json:"path"`
	File  galaxyEntryJSON `json:"file"`
	Lines int             `json:"lines"`
}

// wsSelection is the payload for zoom_in and jump.
type wsSelection struct {
	Level  string `json:"level,omitempty"` // jump only
	File   string `json:"file,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Start  int    `json:"start,omitempty"`
	End    int    `json:"end,omitempty"`
}

type wsEntryJSON struct {
	Level  string `json:"level"`
	File   string `json:"file,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Start  int    `json:"start,omitempty"`
	End    int    `json:"end,omitempty"`
}

// wsViewResponse is the current view after load_diff or any zoom change.
type wsViewResponse struct {
	Level     string             `json:"level"`
	Stack     []wsEntryJSON      `json:"stack"`
	Galaxy    *galaxyResponse    `json:"galaxy,omitempty"`
	Structure *structureResponse `json:"structure,omitempty"`
	Logic     *logicResponse     `json:"logic,omitempty"`
}

type wsPathMsg struct {
	Path string `json:"path"`
}

type wsHunkJSON struct {
	Header string   `json:"header"`
	Lines  []string `json:"lines"`
}

// wsEffectiveDiffResponse is a file's diff with only its staged lines applied.
type wsEffectiveDiffResponse struct {
	Path  string       `json:"path"`
	Hunks []wsHunkJSON `json:"hunks"`
	Patch string       `json:"patch,omitempty"` // every staged change, as a unified patch
}

// reviewSession holds the state for a WebSocket review session.
type reviewSession struct {
	id    string
	info  source.Info
	eng   *engine.Engine
	stage *staging.Model
	nav   *zoom.Navigator
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	session := &reviewSession{id: uuid.NewString()}
	log := s.log.With("session", session.id)
	log.Info("websocket session opened", "remote", r.RemoteAddr)
	s.sendWSMessage(conn, wsMsgSession, wsSessionResponse{ID: session.id})

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read", "err", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendWSError(conn, "invalid message format")
			continue
		}

		if msg.Type != wsMsgLoadDiff && session.eng == nil {
			s.sendWSError(conn, "no diff loaded")
			continue
		}

		switch msg.Type {
		case wsMsgLoadDiff:
			s.handleWSLoadDiff(ctx, conn, session, msg.Data)
		case wsMsgStage:
			s.handleWSStage(ctx, conn, session, msg.Data, true)
		case wsMsgUnstage:
			s.handleWSStage(ctx, conn, session, msg.Data, false)
		case wsMsgZoomIn:
			s.handleWSZoomIn(conn, session, msg.Data)
		case wsMsgZoomOut:
			if err := session.nav.ZoomOut(); err != nil {
				s.sendWSError(conn, err.Error())
				continue
			}
			s.sendView(conn, session)
		case wsMsgJump:
			s.handleWSJump(conn, session, msg.Data)
		case wsMsgEffectiveDiff:
			s.handleWSEffectiveDiff(conn, session, msg.Data)
		default:
			s.sendWSError(conn, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) handleWSLoadDiff(ctx context.Context, conn *websocket.Conn, session *reviewSession, data json.RawMessage) {
	var req loadRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWSError(conn, "invalid load_diff data")
		return
	}

	loaded, err := s.loadSession(ctx, req)
	if err != nil {
		s.sendWSError(conn, err.Error())
		return
	}
	eng, err := s.buildEngine(ctx, loaded)
	if err != nil {
		s.sendWSError(conn, err.Error())
		return
	}

	session.info = loaded.Info
	session.eng = eng
	session.stage = staging.New(loaded.Files)
	eng.SetStaging(session.stage)
	session.nav = zoom.New(eng)

	view, err := session.view()
	if err != nil {
		s.sendWSError(conn, err.Error())
		return
	}
	s.sendWSMessage(conn, wsMsgLoaded, view)
}

func (s *Server) handleWSStage(ctx context.Context, conn *websocket.Conn, session *reviewSession, data json.RawMessage, stage bool) {
	var req wsStageMsg
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWSError(conn, "invalid stage data")
		return
	}

	var err error
	if req.Symbol != "" {
		var lines []staging.Line
		if lines, err = session.eng.SymbolLines(req.Path, req.Symbol); err == nil {
			if stage {
				err = session.stage.StageLines(req.Path, lines)
			} else {
				err = session.stage.UnstageLines(req.Path, lines)
			}
		}
	} else {
		r := model.LineRange{Start: req.Start, End: req.End}
		if stage {
			err = session.stage.Stage(req.Path, req.Hunk, r)
		} else {
			err = session.stage.Unstage(req.Path, req.Hunk, r)
		}
	}
	if err != nil {
		s.sendWSError(conn, err.Error())
		return
	}

	if _, err := session.eng.Recompute(ctx, []string{req.Path}); err != nil {
		s.sendWSError(conn, err.Error())
		return
	}

	resp := wsStagedResponse{Path: req.Path, Lines: len(session.stage.StagedLines(req.Path))}
	for _, f := range toGalaxy(session.info, session.eng).Files {
		if f.Path == req.Path {
			resp.File = f
		}
	}
	s.sendWSMessage(conn, wsMsgStaged, resp)
}

func (s *Server) handleWSZoomIn(conn *websocket.Conn, session *reviewSession, data json.RawMessage) {
	var req wsSelection
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWSError(conn, "invalid zoom_in data")
		return
	}
	if err := session.nav.ZoomIn(req.selection()); err != nil {
		s.sendWSError(conn, err.Error())
		return
	}
	s.sendView(conn, session)
}

func (s *Server) handleWSJump(conn *websocket.Conn, session *reviewSession, data json.RawMessage) {
	var req wsSelection
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWSError(conn, "invalid jump data")
		return
	}
	level, err := parseLevel(req.Level)
	if err != nil {
		s.sendWSError(conn, err.Error())
		return
	}
	if err := session.nav.Jump(level, req.selection()); err != nil {
		s.sendWSError(conn, err.Error())
		return
	}
	s.sendView(conn, session)
}

func (s *Server) handleWSEffectiveDiff(conn *websocket.Conn, session *reviewSession, data json.RawMessage) {
	var req wsPathMsg
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWSError(conn, "invalid effective_diff data")
		return
	}
	if !session.eng.HasFile(req.Path) {
		s.sendWSError(conn, fmt.Sprintf("%v: %s", engine.ErrUnknownFile, req.Path))
		return
	}

	resp := wsEffectiveDiffResponse{Path: req.Path, Hunks: []wsHunkJSON{}}
	for _, h := range session.stage.EffectiveDiff(req.Path) {
		hj := wsHunkJSON{Header: h.Header()}
		for _, l := range h.Lines {
			hj.Lines = append(hj.Lines, l.Op.Prefix()+l.Text)
		}
		resp.Hunks = append(resp.Hunks, hj)
	}
	patch, err := session.stage.Patch()
	if err != nil {
		s.sendWSError(conn, err.Error())
		return
	}
	resp.Patch = string(patch)
	s.sendWSMessage(conn, wsMsgEffectiveDiff, resp)
}

func (sel wsSelection) selection() zoom.Selection {
	return zoom.Selection{File: sel.File, Symbol: sel.Symbol, Lines: model.LineRange{Start: sel.Start, End: sel.End}}
}

func parseLevel(s string) (model.ZoomLevel, error) {
	for _, l := range []model.ZoomLevel{model.Galaxy, model.Structure, model.Logic} {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown level %q", zoom.ErrInvalidSelection, s)
}

// view renders the navigator's current level.
func (session *reviewSession) view() (wsViewResponse, error) {
	cur := session.nav.Current()
	resp := wsViewResponse{Level: cur.Level.String()}
	for _, e := range session.nav.Stack() {
		resp.Stack = append(resp.Stack, wsEntryJSON{
			Level:  e.Level.String(),
			File:   e.Selection.File,
			Symbol: e.Selection.Symbol,
			Start:  e.Selection.Lines.Start,
			End:    e.Selection.Lines.End,
		})
	}

	switch cur.Level {
	case model.Galaxy:
		g := toGalaxy(session.info, session.eng)
		resp.Galaxy = &g
	case model.Structure:
		nodes, err := session.eng.Structure(cur.Selection.File, false)
		if err != nil {
			return resp, err
		}
		st := toStructure(cur.Selection.File, nodes)
		resp.Structure = &st
	case model.Logic:
		v, err := session.eng.Logic(cur.Selection.File, cur.Selection.Symbol)
		if err != nil {
			return resp, err
		}
		lg := toLogic(v)
		resp.Logic = &lg
	}
	return resp, nil
}

func (s *Server) sendView(conn *websocket.Conn, session *reviewSession) {
	view, err := session.view()
	if err != nil {
		s.sendWSError(conn, err.Error())
		return
	}
	s.sendWSMessage(conn, wsMsgView, view)
}

func (s *Server) sendWSMessage(conn *websocket.Conn, msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.log.Error("ws marshal", "err", err)
		return
	}
	msg := wsMessage{Type: msgType, Data: raw}
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("ws write", "err", err)
	}
}

func (s *Server) sendWSError(conn *websocket.Conn, errMsg string) {
	s.sendWSMessage(conn, wsMsgError, map[string]string{"message": errMsg})
}
