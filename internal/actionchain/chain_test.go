package actionchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"station/pkg/models"
)

func noopSpawn(ctx context.Context, dir string, env []string) (*SpawnedChild, error) {
	return &SpawnedChild{Wait: func() (int, error) { return 0, nil }}, nil
}

func TestAppendBuildsChainWithoutMutatingOriginal(t *testing.T) {
	a := NewAction(KindScriptRequest, models.RunReasonSetupScript, "repo-a", noopSpawn)
	chain := Append(a, NewAction(KindCodingAgentInitial, models.RunReasonCodingAgent, "", noopSpawn))

	require.Equal(t, KindScriptRequest, chain.Kind)
	require.NotNil(t, chain.Next())
	require.Equal(t, KindCodingAgentInitial, chain.Next().Kind)

	// Original `a` is untouched.
	require.Nil(t, a.Next())
}

func TestEffectiveDirConcatenatesRelDir(t *testing.T) {
	a := NewAction(KindScriptRequest, models.RunReasonSetupScript, "backend", noopSpawn)
	require.Equal(t, "/work/backend", a.EffectiveDir("/work"))
}

func TestEffectiveDirNoRelDirReturnsCurrent(t *testing.T) {
	a := NewAction(KindCodingAgentInitial, models.RunReasonCodingAgent, "", noopSpawn)
	require.Equal(t, "/work", a.EffectiveDir("/work"))
}

func TestIsLongLivedOnlyForDevServer(t *testing.T) {
	a := NewAction(KindScriptRequest, models.RunReasonDevServer, "", noopSpawn)
	require.True(t, a.IsLongLived())

	b := NewAction(KindScriptRequest, models.RunReasonSetupScript, "", noopSpawn)
	require.False(t, b.IsLongLived())
}
