package agentlauncher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeHandlesQuotesAndEscapes(t *testing.T) {
	toks, err := Tokenize(`npx -y "@anthropic-ai/claude-code@latest" --flag='a b' two\ words`)
	require.NoError(t, err)
	require.Equal(t, []string{"npx", "-y", "@anthropic-ai/claude-code@latest", "--flag=a b", "two words"}, toks)
}

func TestTokenizeUnterminatedQuoteFails(t *testing.T) {
	_, err := Tokenize(`echo "unterminated`)
	require.Error(t, err)
	var invalid *ErrInvalidBase
	require.ErrorAs(t, err, &invalid)
}

func TestBuildFollowUpAppendsResumeArgs(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-agent")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))
	t.Setenv("PATH", dir)

	profile := ExecutorProfile{
		BaseCommand:      "fake-agent",
		DefaultParams:    []string{"--print"},
		SupportsFollowUp: true,
	}
	cmd, err := BuildFollowUp(profile, "sess-123", "msg-7", nil)
	require.NoError(t, err)
	require.Equal(t, bin, cmd.Path)
	require.Equal(t, []string{bin, "--print", "--resume", "sess-123", "--continue"}, cmd.Args)
}

func TestBuildFollowUpRejectsUnsupportedExecutor(t *testing.T) {
	_, err := BuildFollowUp(ExecutorProfile{BaseCommand: "fake", SupportsFollowUp: false}, "s", "", nil)
	require.ErrorIs(t, err, ErrFollowUpNotSupported)
}

func TestResolveExecutableNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := Build(ExecutorProfile{BaseCommand: "definitely-not-a-real-binary-xyz"}, nil)
	require.ErrorIs(t, err, ErrExecutableNotFound)
}

func TestComposeEnvScrubsAPIKeysWhenDisabled(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "secret")
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-agent")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))
	t.Setenv("PATH", dir)

	cmd, err := Build(ExecutorProfile{BaseCommand: "fake-agent", DisableAPIKey: true}, nil)
	require.NoError(t, err)
	for _, kv := range cmd.Env {
		require.NotContains(t, kv, "ANTHROPIC_API_KEY=secret")
	}
}
