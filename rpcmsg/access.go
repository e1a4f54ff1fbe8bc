package rpcmsg

import "strings"

// AccessLevel is the linear SHV RPC access scale: higher numbers are more
// privileged. Methods declare a minimum level; a caller's granted level
// must be >= that minimum to be authorized.
type AccessLevel uint8

const (
	LevelNone         AccessLevel = 0
	LevelBrowse       AccessLevel = 1
	LevelRead         AccessLevel = 8
	LevelWrite        AccessLevel = 16
	LevelCommand      AccessLevel = 24
	LevelConfig       AccessLevel = 32
	LevelService      AccessLevel = 40
	LevelSuperService AccessLevel = 48
	LevelDevel        AccessLevel = 56
	LevelAdmin        AccessLevel = 63
)

func (l AccessLevel) String() string {
	switch l {
	case LevelNone:
		return "None"
	case LevelBrowse:
		return "Browse"
	case LevelRead:
		return "Read"
	case LevelWrite:
		return "Write"
	case LevelCommand:
		return "Command"
	case LevelConfig:
		return "Config"
	case LevelService:
		return "Service"
	case LevelSuperService:
		return "SuperService"
	case LevelDevel:
		return "Devel"
	case LevelAdmin:
		return "Admin"
	default:
		return "Unknown"
	}
}

// grantedTokens maps an access level to its legacy pre-SHV-3.0 granted
// access string, per original_source/libshvrpc/rpcaccess.c.
var grantedTokens = map[AccessLevel]string{
	LevelBrowse:       "bws",
	LevelRead:         "rd",
	LevelWrite:        "wr",
	LevelCommand:      "cmd",
	LevelConfig:       "cfg",
	LevelService:      "srv",
	LevelSuperService: "ssrv",
	LevelDevel:        "dev",
	LevelAdmin:        "su",
}

var grantedLevels = func() map[string]AccessLevel {
	m := make(map[string]AccessLevel, len(grantedTokens))
	for lvl, tok := range grantedTokens {
		m[tok] = lvl
	}
	return m
}()

// GrantedString returns the legacy granted-access token for l, or "" if l
// has no legacy equivalent (e.g. LevelNone).
func (l AccessLevel) GrantedString() string {
	return grantedTokens[l]
}

// ParseGranted looks up a single legacy granted-access token.
func ParseGranted(token string) (AccessLevel, bool) {
	lvl, ok := grantedLevels[token]
	return lvl, ok
}

// ExtractGranted scans a comma-separated legacy granted-access string,
// returning the highest-ranked recognized level and the remainder of the
// string with recognized tokens removed (unrecognized tokens, which might
// be broker-specific rule names, are preserved in order).
func ExtractGranted(s string) (AccessLevel, string) {
	parts := strings.Split(s, ",")
	level := LevelNone
	kept := parts[:0:0]
	for _, p := range parts {
		if lvl, ok := grantedLevels[p]; ok {
			if lvl > level {
				level = lvl
			}
			continue
		}
		kept = append(kept, p)
	}
	return level, strings.Join(kept, ",")
}
