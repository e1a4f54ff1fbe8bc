package rpcmsg

import "testing"

func TestGrantedStringRoundTrip(t *testing.T) {
	levels := []AccessLevel{LevelBrowse, LevelRead, LevelWrite, LevelCommand,
		LevelConfig, LevelService, LevelSuperService, LevelDevel, LevelAdmin}
	for _, lvl := range levels {
		tok := lvl.GrantedString()
		if tok == "" {
			t.Fatalf("expected a granted token for %v", lvl)
		}
		got, ok := ParseGranted(tok)
		if !ok || got != lvl {
			t.Errorf("ParseGranted(%q) = %v, %v; want %v, true", tok, got, ok, lvl)
		}
	}
}

func TestExtractGrantedPicksHighest(t *testing.T) {
	lvl, rest := ExtractGranted("rd,wr,custom")
	if lvl != LevelWrite {
		t.Errorf("got level %v, want Write", lvl)
	}
	if rest != "custom" {
		t.Errorf("got remainder %q, want %q", rest, "custom")
	}
}

func TestExtractGrantedUnrecognized(t *testing.T) {
	lvl, rest := ExtractGranted("unknown-rule")
	if lvl != LevelNone {
		t.Errorf("got level %v, want None", lvl)
	}
	if rest != "unknown-rule" {
		t.Errorf("got remainder %q, want %q", rest, "unknown-rule")
	}
}
