package workspacelifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBranchNameSlugifiesAndTruncates(t *testing.T) {
	name := BranchName("vibe", "Fix the Thing That Broke Badly", "ws_abcdefgh")
	require.Equal(t, "vibe/fix-the-thing-th-ws_a", name)
}

func TestBranchNameDefaultsPrefix(t *testing.T) {
	name := BranchName("", "short", "wsid")
	require.Equal(t, "vibe/short-wsid", name)
}

func TestSlugify16EmptyTitleFallsBackToTask(t *testing.T) {
	require.Equal(t, "task", slugify16("!!!"))
}
