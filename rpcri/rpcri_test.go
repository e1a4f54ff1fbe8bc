package rpcri

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		ri, path, method, signal string
		want                     bool
	}{
		{"**:*", ".app", "name", "", true},
		{"**:*", "sub/device/track", "get", "", true},
		{"**:*", "test/device/track", "get", "", true},
		{"**:get", ".app", "name", "", false},
		{"**:get", "sub/device/track", "get", "", true},
		{"**:get", "test/device/track", "get", "", true},
		{"test/**:get", ".app", "name", "", false},
		{"test/**:get", "sub/device/track", "get", "", false},
		{"test/**:get", "test/device/track", "get", "", true},
		{"**:*:*", ".app", "name", "", false},
		{"**:*:*", "test/device/track", "get", "", false},
		{"**:*:*", "test/device/track", "get", "chng", true},
		{"**:*:*", "test/device/track", "get", "mod", true},
		{"**:*:*", "test/device/track", "ls", "lsmod", true},
		{"**:get:*", "test/device/track", "get", "chng", true},
		{"**:get:*", "test/device/track", "get", "mod", true},
		{"**:get:*", "test/device/track", "ls", "lsmod", false},
		{"test/**:get:*chng", "test/device/track", "get", "chng", true},
		{"test/**:get:*chng", "test/device/track", "get", "mod", false},
		{"test/**:get:*chng", "test/device/track", "ls", "lsmod", false},
		{"test/*:ls:lsmod", "test/device/track", "get", "chng", false},
		{"test/*:ls:lsmod", "test/device/track", "ls", "lsmod", false},
		{"test/**:get", "test/device/track", "get", "chng", true},
		{"test/**:get", "test/device/track", "ls", "lsmod", false},
		{"[t]est/**:ge[t]", "test/device/track", "get", "", true},
		{"[a-z]est/**:ge[a-z]", "test/device/track", "get", "", true},
		{"[a-z]est/**:ge[a-z", "test/device/track", "get", "", true},
		{"[a-s]est/**:get", "test/device/track", "get", "", false},
		{"test/**:get[a-z]", "test/device/track", "get", "", false},
		{"test/**:get[!c]", "test/device/track", "get", "", true},
		{"test/**:get[!c][a-z]", "test/device/track", "get", "", false},
	}

	for _, c := range cases {
		got := Match(c.ri, c.path, c.method, c.signal)
		if got != c.want {
			t.Errorf("Match(%q, %q, %q, %q) = %v, want %v", c.ri, c.path, c.method, c.signal, got, c.want)
		}
	}
}

func TestMatchPathDoubleStarMatchesParentItself(t *testing.T) {
	if !MatchPath("test/**", "test") {
		t.Error("\"test/**\" should match \"test\" itself")
	}
	if !MatchPath("test/**", "test/device") {
		t.Error("\"test/**\" should match \"test/device\"")
	}
}

func TestMatchStringWildcards(t *testing.T) {
	if !MatchString("*.txt", "report.txt") {
		t.Error("expected *.txt to match report.txt")
	}
	if MatchString("*.txt", "report.md") {
		t.Error("expected *.txt to not match report.md")
	}
	if !MatchString("fi?e", "file") {
		t.Error("expected fi?e to match file")
	}
}

func TestNoColonNeverMatches(t *testing.T) {
	if Match("noColonHere", "anything", "method", "") {
		t.Error("a RI without a ':' must never match")
	}
}
