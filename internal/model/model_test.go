package model

import (
	"testing"
)

func TestRelationString(t *testing.T) {
	tests := []struct {
		rel  Relation
		want string
	}{
		{RelationUnchanged, "unchanged"},
		{RelationModified, "modified"},
		{RelationAdded, "added"},
		{RelationDeleted, "deleted"},
		{RelationMoved, "moved"},
		{RelationRenamed, "renamed"},
		{Relation(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.rel.String(); got != tt.want {
			t.Errorf("Relation(%d).String() = %q, want %q", tt.rel, got, tt.want)
		}
	}
}

func TestZoomLevelString(t *testing.T) {
	tests := []struct {
		level ZoomLevel
		want  string
	}{
		{Galaxy, "galaxy"},
		{Structure, "structure"},
		{Logic, "logic"},
		{ZoomLevel(7), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("ZoomLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\r\nb\r\n", 2},
		{"\n\n", 2},
	}
	for _, tt := range tests {
		if got := len(SplitLines(tt.in)); got != tt.want {
			t.Errorf("SplitLines(%q) returned %d lines, want %d", tt.in, got, tt.want)
		}
	}
	if got := SplitLines("x\r\ny")[0]; got != "x" {
		t.Errorf("expected carriage return stripped, got %q", got)
	}
}

func TestRawLines(t *testing.T) {
	v := NewFileVersion("w.txt", []byte("a\r\nb\nc"))
	got := v.RawLines()
	want := []string{"a\r\n", "b\n", "c"}
	if len(got) != len(want) {
		t.Fatalf("RawLines() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if v.Line(1) != "a" {
		t.Errorf("Line(1) = %q, want the text without CR", v.Line(1))
	}
	if (*FileVersion)(nil).RawLines() != nil {
		t.Error("nil version has no lines")
	}
}

func TestLineEditRaw(t *testing.T) {
	tests := []struct {
		l    LineEdit
		want string
	}{
		{LineEdit{Text: "x"}, "x\n"},
		{LineEdit{Text: "x", CRLF: true}, "x\r\n"},
		{LineEdit{Text: "x", CRLF: true, NoNewline: true}, "x"},
	}
	for _, tt := range tests {
		if got := tt.l.Raw(); got != tt.want {
			t.Errorf("%+v.Raw() = %q, want %q", tt.l, got, tt.want)
		}
	}
}

func TestHunkHeader(t *testing.T) {
	h := Hunk{OldStart: 3, OldLen: 1, NewStart: 3, NewLen: 4}
	if got := h.Header(); got != "@@ -3 +3,4 @@" {
		t.Errorf("unexpected header %q", got)
	}
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash([]byte("package main\n"))
	b := ContentHash([]byte("package main\n"))
	c := ContentHash([]byte("package other\n"))
	if a != b {
		t.Error("expected identical content to hash identically")
	}
	if a == c {
		t.Error("expected different content to hash differently")
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a))
	}
}

func TestStageStateOf(t *testing.T) {
	if StageStateOf(0, 5) != StageNone {
		t.Error("expected none")
	}
	if StageStateOf(2, 5) != StagePartial {
		t.Error("expected partial")
	}
	if StageStateOf(5, 5) != StageFull {
		t.Error("expected full")
	}
}

func TestMatchKey(t *testing.T) {
	if got := (SymbolMatch{PreID: "a", PostID: "b"}).Key(); got != "+b" {
		t.Errorf("got %q", got)
	}
	if got := (SymbolMatch{PreID: "a"}).Key(); got != "-a" {
		t.Errorf("got %q", got)
	}
}
