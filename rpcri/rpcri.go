// Package rpcri implements resource identifier matching: PATH:METHOD or
// PATH:METHOD:SIGNAL patterns using POSIX.2 3.13 wildcard matching
// ('?', '*', '[...]'/'[!...]') plus a double wildcard '**' that crosses
// path-segment boundaries, following
// original_source/libshvrpc/rpcri.c's rpcri_match.
package rpcri

import "strings"

// Match reports whether ri matches the given path/method/signal triple.
// Pass an empty signal to match a plain method call (PATH:METHOD); any
// :SIGNAL suffix on ri is then ignored, mirroring the C implementation's
// NULL-signal behavior.
func Match(ri, path, method, signal string) bool {
	pathEnd := strings.IndexByte(ri, ':')
	if pathEnd < 0 {
		return false
	}
	if !matchOne(ri[:pathEnd], path) {
		return false
	}

	rest := ri[pathEnd+1:]
	methodEnd := strings.IndexByte(rest, ':')
	if signal == "" || methodEnd < 0 {
		return matchOne(rest, method)
	}
	if !matchOne(rest[:methodEnd], method) {
		return false
	}
	return matchOne(rest[methodEnd+1:], signal)
}

// MatchPath matches a single SHV path component pattern against a path.
func MatchPath(pattern, path string) bool {
	return matchOne(pattern, path)
}

// MatchString matches a single wildcard pattern against an arbitrary
// string (no '/' path-segment semantics beyond what the pattern encodes).
func MatchString(pattern, s string) bool {
	return matchOne(pattern, s)
}

// matchOne matches one glob pattern (no ':' splitting) against s.
func matchOne(pattern, s string) bool {
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]

		switch {
		case c == '?':
			if len(s) == 0 {
				return false
			}
			s = s[1:]

		case c == '[':
			if len(s) == 0 {
				return false
			}
			negate := i+1 < len(pattern) && pattern[i+1] == '!'
			start := i + 1
			if negate {
				start++
			}
			end := start
			for end < len(pattern) && pattern[end] != ']' {
				end++
			}
			matched := matchClass(pattern[start:end], s[0])
			if negate {
				matched = !matched
			}
			if !matched {
				return false
			}
			i = end
			s = s[1:]

		case c == '*':
			doubleStar := i+1 < len(pattern) && pattern[i+1] == '*'
			restStart := i + 1
			if doubleStar {
				restStart++
			}
			rest := pattern[restStart:]

			var limit int
			if doubleStar {
				limit = len(s)
			} else if idx := strings.IndexByte(s, '/'); idx >= 0 {
				limit = idx
			} else {
				limit = len(s)
			}
			for n := limit; n >= 0; n-- {
				if matchOne(rest, s[n:]) {
					return true
				}
			}
			return false

		default:
			// "foo/**" also matches "foo" itself: when the remaining
			// pattern starting at a literal '/' is exactly "/**", the
			// rest of the string (including none at all) is accepted.
			if c == '/' && len(pattern)-i == 3 && pattern[i+1] == '*' && pattern[i+2] == '*' {
				return true
			}
			if len(s) == 0 || s[0] != c {
				return false
			}
			s = s[1:]
		}
	}

	return len(s) == 0
}

// matchClass reports whether c falls in the bracket-expression body cls
// (without its enclosing '[...]'/leading '!'), where adjacent triples
// like "a-z" denote an inclusive range and any other character is a
// literal member.
func matchClass(cls string, c byte) bool {
	i := 0
	for i < len(cls) {
		if i+2 < len(cls) && cls[i+1] == '-' {
			lo, hi := cls[i], cls[i+2]
			if c >= lo && c <= hi {
				return true
			}
			i += 3
			continue
		}
		if cls[i] == c {
			return true
		}
		i++
	}
	return false
}
