package rpcmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMethodDescRoundTrip(t *testing.T) {
	d := MethodDesc{
		Name:   "temperature",
		Result: "Double",
		Flags:  FlagGetter | FlagLargeResult,
		Access: LevelRead,
		Signals: []Signal{
			{Name: "chng", Param: "Double"},
		},
	}
	v := d.ToValue()
	got, err := MethodDescFromValue(v)
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestStandardLsAndDirAreBrowseLevel(t *testing.T) {
	require.Equal(t, LevelBrowse, StandardLs.Access)
	require.Equal(t, LevelBrowse, StandardDir.Access)
	require.NotZero(t, StandardLs.Flags&FlagGetter)
	require.NotZero(t, StandardDir.Flags&FlagGetter)
}
