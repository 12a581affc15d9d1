package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/sprite-ai/glim/internal/engine"
	"github.com/sprite-ai/glim/internal/parse"
	"github.com/sprite-ai/glim/internal/source"
)

const testDiff = `diff --git a/main.go b/main.go
index abc1234..def5678 100644
--- a/main.go
+++ b/main.go
@@ -1,5 +1,6 @@
 package main

 func main() {
-	println("hello")
+	println("hello world")
+	println("goodbye")
 }
diff --git a/util.go b/util.go
new file mode 100644
--- /dev/null
+++ b/util.go
@@ -0,0 +1,5 @@
+package main
+
+func add(a, b int) int {
+	return a + b
+}
`

const (
	mainPre  = "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n"
	mainPost = "package main\n\nfunc main() {\n\tprintln(\"hello world\")\n\tprintln(\"goodbye\")\n}\n"
	utilPost = "package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n"
)

func testContents() map[string]contentJSON {
	pre, post, util := mainPre, mainPost, utilPost
	return map[string]contentJSON{
		"main.go": {Pre: &pre, Post: &post},
		"util.go": {Post: &util},
	}
}

func newTestServer() *Server {
	return New(":0", Config{
		Engine: engine.DefaultOptions(),
		Parser: parse.New(),
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func post(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
}

func TestGalaxyEndpoint(t *testing.T) {
	srv := newTestServer()
	w := post(t, srv, "/api/galaxy", loadRequest{Diff: testDiff, Contents: testContents()})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp galaxyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if resp.Stats.Files != 2 || resp.Stats.Added != 7 || resp.Stats.Removed != 1 {
		t.Errorf("stats = %+v, want 2 files +7 -1", resp.Stats)
	}
	if len(resp.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(resp.Files))
	}
	// util.go is entirely new, so it carries the most churn.
	if resp.Files[0].Path != "util.go" {
		t.Errorf("hottest file = %q, want util.go", resp.Files[0].Path)
	}
	for _, f := range resp.Files {
		if f.Pending {
			t.Errorf("%s still pending after build", f.Path)
		}
		if f.Stage != "none" {
			t.Errorf("%s stage = %q, want none", f.Path, f.Stage)
		}
	}
	if resp.Info.Stats != "+7 -1 (2 files)" {
		t.Errorf("info stats = %q", resp.Info.Stats)
	}
}

func TestGalaxyIgnoresPaths(t *testing.T) {
	srv := New(":0", Config{
		Engine: engine.DefaultOptions(),
		Parser: parse.New(),
		Source: source.Options{Ignored: func(p string) bool { return p == "util.go" }},
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	w := post(t, srv, "/api/galaxy", loadRequest{Diff: testDiff})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp galaxyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if len(resp.Files) != 1 || resp.Files[0].Path != "main.go" {
		t.Errorf("files = %+v, want only main.go", resp.Files)
	}
}

func TestStructureEndpoint(t *testing.T) {
	srv := newTestServer()
	w := post(t, srv, "/api/structure", structureRequest{
		loadRequest: loadRequest{Diff: testDiff, Contents: testContents()},
		Path:        "main.go",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp structureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	var found *nodeJSON
	for i := range resp.Symbols {
		if resp.Symbols[i].Name == "main" {
			found = &resp.Symbols[i]
		}
	}
	if found == nil {
		t.Fatalf("main not in structure: %+v", resp.Symbols)
	}
	if found.Relation != "modified" {
		t.Errorf("relation = %q, want modified", found.Relation)
	}
	if found.Added != 2 || found.Removed != 1 {
		t.Errorf("counts = +%d -%d, want +2 -1", found.Added, found.Removed)
	}
}

func TestLogicEndpoint(t *testing.T) {
	srv := newTestServer()
	w := post(t, srv, "/api/logic", logicRequest{
		loadRequest: loadRequest{Diff: testDiff, Contents: testContents()},
		Path:        "main.go",
		Symbol:      "+main",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp logicResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if resp.Symbol.Name != "main" {
		t.Errorf("symbol = %q, want main", resp.Symbol.Name)
	}
	var added, removed int
	for _, h := range resp.Hunks {
		for _, b := range h.Blocks {
			for _, l := range b.Lines {
				switch l.Op {
				case "added":
					added++
					if l.Label != "semantic" {
						t.Errorf("line %q labelled %s", l.Text, l.Label)
					}
				case "removed":
					removed++
				}
			}
		}
	}
	if added != 2 || removed != 1 {
		t.Errorf("logic lines +%d -%d, want +2 -1", added, removed)
	}
}

func TestUnknownSymbolIs404(t *testing.T) {
	srv := newTestServer()
	w := post(t, srv, "/api/logic", logicRequest{
		loadRequest: loadRequest{Diff: testDiff, Contents: testContents()},
		Path:        "main.go",
		Symbol:      "+nope",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}

	w = post(t, srv, "/api/structure", structureRequest{
		loadRequest: loadRequest{Diff: testDiff},
		Path:        "missing.go",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/galaxy", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid json: expected 400, got %d", w.Code)
	}

	w = post(t, srv, "/api/galaxy", loadRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty diff: expected 400, got %d", w.Code)
	}

	w = post(t, srv, "/api/galaxy", loadRequest{RepoDir: t.TempDir()})
	if w.Code != http.StatusBadRequest {
		t.Errorf("not a repository: expected 400, got %d", w.Code)
	}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *Server) *wsClient {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msgType string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	if err := c.conn.WriteJSON(wsMessage{Type: msgType, Data: raw}); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *wsClient) expect(msgType string, into any) {
	c.t.Helper()
	var msg wsMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	if msg.Type != msgType {
		c.t.Fatalf("expected %s, got %s: %s", msgType, msg.Type, msg.Data)
	}
	if into != nil {
		if err := json.Unmarshal(msg.Data, into); err != nil {
			c.t.Fatalf("decode %s: %v", msgType, err)
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	c := dial(t, newTestServer())

	var sess wsSessionResponse
	c.expect(wsMsgSession, &sess)
	if sess.ID == "" {
		t.Error("expected a session id")
	}

	c.send(wsMsgZoomIn, wsSelection{File: "main.go"})
	c.expect(wsMsgError, nil)

	c.send(wsMsgLoadDiff, loadRequest{Diff: testDiff, Contents: testContents()})
	var loaded wsViewResponse
	c.expect(wsMsgLoaded, &loaded)
	if loaded.Level != "galaxy" || loaded.Galaxy == nil || len(loaded.Galaxy.Files) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}

	c.send(wsMsgZoomIn, wsSelection{File: "main.go"})
	var view wsViewResponse
	c.expect(wsMsgView, &view)
	if view.Level != "structure" || view.Structure == nil || len(view.Stack) != 2 {
		t.Fatalf("structure view = %+v", view)
	}

	c.send(wsMsgZoomIn, wsSelection{Symbol: "+main"})
	c.expect(wsMsgView, &view)
	if view.Level != "logic" || view.Logic == nil || view.Logic.Symbol.Name != "main" {
		t.Fatalf("logic view = %+v", view)
	}

	c.send(wsMsgZoomIn, wsSelection{Symbol: "+main"})
	c.expect(wsMsgError, nil)

	c.send(wsMsgStage, wsStageMsg{Path: "main.go", Symbol: "+main"})
	var staged wsStagedResponse
	c.expect(wsMsgStaged, &staged)
	if staged.File.Stage != "full" || staged.Lines != 3 {
		t.Errorf("staged = %+v, want full with 3 lines", staged)
	}
	if staged.File.StagedAdded != 2 || staged.File.StagedRemoved != 1 {
		t.Errorf("staged counts = +%d -%d", staged.File.StagedAdded, staged.File.StagedRemoved)
	}

	c.send(wsMsgEffectiveDiff, wsPathMsg{Path: "main.go"})
	var eff wsEffectiveDiffResponse
	c.expect(wsMsgEffectiveDiff, &eff)
	if len(eff.Hunks) != 1 {
		t.Fatalf("expected the staged hunk, got %+v", eff.Hunks)
	}
	var changed int
	for _, l := range eff.Hunks[0].Lines {
		if strings.HasPrefix(l, "+") || strings.HasPrefix(l, "-") {
			changed++
		}
	}
	if changed != 3 {
		t.Errorf("expected 3 staged changes, got %d: %v", changed, eff.Hunks[0].Lines)
	}
	if !strings.Contains(eff.Patch, "+\tprintln(\"goodbye\")") {
		t.Errorf("patch missing staged line:\n%s", eff.Patch)
	}

	c.send(wsMsgUnstage, wsStageMsg{Path: "main.go", Hunk: 0, Start: 0, End: 6})
	c.expect(wsMsgStaged, &staged)
	if staged.File.Stage != "none" || staged.Lines != 0 {
		t.Errorf("after unstage = %+v", staged)
	}

	c.send(wsMsgJump, wsSelection{Level: "galaxy"})
	c.expect(wsMsgView, &view)
	if view.Level != "galaxy" || len(view.Stack) != 1 {
		t.Errorf("jump view = %+v", view)
	}

	c.send(wsMsgZoomOut, nil)
	c.expect(wsMsgError, nil)

	c.send("bogus", nil)
	c.expect(wsMsgError, nil)
}
