// Package agentlauncher turns an ExecutorProfile into a ready-to-spawn
// command: tokenize base command, compose args/env, resolve the program
// to an absolute path (spec §4.5). Grounded on the exec.CommandContext
// construction style of the teacher's internal/coding/cli_backend.go,
// generalized from one hardcoded binary per backend into a configurable
// profile.
package agentlauncher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrExecutableNotFound is returned when the resolved program cannot be
// located on PATH.
var ErrExecutableNotFound = errors.New("agentlauncher: executable not found")

// ErrFollowUpNotSupported is returned by BuildFollowUp for an executor
// whose profile declares SupportsFollowUp = false.
var ErrFollowUpNotSupported = errors.New("agentlauncher: executor does not support follow-up")

// ExecutorProfileID identifies a configured executor + optional variant,
// e.g. {Executor: "claude", Variant: "sonnet"}.
type ExecutorProfileID struct {
	Executor string
	Variant  string
}

// ExecutorProfile is the static configuration for one executor, keyed by
// ExecutorProfileID (spec §4.5).
type ExecutorProfile struct {
	BaseCommand      string            // e.g. "npx -y @anthropic-ai/claude-code@latest"
	DefaultParams    []string          // e.g. ["--print", "--output-format", "stream-json"]
	Model            string            // optional, appended as --model <x> when set
	Env              map[string]string // profile-level env overrides
	DisableAPIKey    bool              // scrub parent-only API-key-shaped env vars
	SupportsFollowUp bool
	OverrideBase     string   // operator override for BaseCommand
	OverrideParams   []string // operator override, appended after DefaultParams
}

// Command is a fully resolved, ready-to-exec.Command spawn spec.
type Command struct {
	Path string
	Args []string // argv, Args[0] == Path
	Env  []string // "KEY=VALUE" pairs, composed per spec §4.5 step 4
}

// apiKeyEnvPrefixes are the parent-env variable name patterns scrubbed
// when a profile sets DisableAPIKey (spec §4.5 step 4).
var apiKeyEnvPrefixes = []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "_API_KEY", "_TOKEN"}

// Build resolves profile into a spawnable Command for an initial
// execution (no --resume/--continue args).
func Build(profile ExecutorProfile, executionEnv map[string]string) (*Command, error) {
	return build(profile, nil, executionEnv)
}

// BuildFollowUp resolves profile for a follow-up execution, appending
// --resume <sessionID> and, when resetToMessageID is non-empty,
// --continue (spec §4.5 step 2).
func BuildFollowUp(profile ExecutorProfile, sessionID, resetToMessageID string, executionEnv map[string]string) (*Command, error) {
	if !profile.SupportsFollowUp {
		return nil, ErrFollowUpNotSupported
	}
	extra := []string{"--resume", sessionID}
	if resetToMessageID != "" {
		extra = append(extra, "--continue")
	}
	return build(profile, extra, executionEnv)
}

func build(profile ExecutorProfile, followUpArgs []string, executionEnv map[string]string) (*Command, error) {
	base := profile.BaseCommand
	if profile.OverrideBase != "" {
		base = profile.OverrideBase
	}
	tokens, err := Tokenize(base)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &ErrInvalidBase{Base: base}
	}

	args := append([]string{}, tokens[1:]...)
	args = append(args, profile.DefaultParams...)
	args = append(args, profile.OverrideParams...)
	if profile.Model != "" {
		args = append(args, "--model", profile.Model)
	}
	args = append(args, followUpArgs...)

	resolved, err := resolveExecutable(tokens[0])
	if err != nil {
		return nil, err
	}

	return &Command{
		Path: resolved,
		Args: append([]string{resolved}, args...),
		Env:  composeEnv(profile, executionEnv),
	}, nil
}

// resolveExecutable scans PATH for name, honoring PATHEXT on Windows and
// the executable bit on POSIX (spec §4.5 step 3).
func resolveExecutable(name string) (string, error) {
	if filepath.IsAbs(name) || strings.ContainsRune(name, os.PathSeparator) {
		if isExecutable(name) {
			return filepath.Clean(name), nil
		}
		return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
	}

	pathEnv := os.Getenv("PATH")
	dirs := filepath.SplitList(pathEnv)
	exts := []string{""}
	if runtime.GOOS == "windows" {
		if pe := os.Getenv("PATHEXT"); pe != "" {
			exts = strings.Split(pe, string(os.PathListSeparator))
		} else {
			exts = []string{".com", ".exe", ".bat", ".cmd"}
		}
	}

	for _, dir := range dirs {
		for _, ext := range exts {
			candidate := filepath.Join(dir, name+ext)
			if isExecutable(candidate) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

// composeEnv layers parent env, profile overrides, then execution-level
// overrides, scrubbing API-key-shaped vars last when DisableAPIKey is set
// (spec §4.5 step 4).
func composeEnv(profile ExecutorProfile, executionEnv map[string]string) []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			merged[k] = v
		}
	}
	for k, v := range profile.Env {
		merged[k] = v
	}
	for k, v := range executionEnv {
		merged[k] = v
	}
	if profile.DisableAPIKey {
		for k := range merged {
			for _, suffix := range apiKeyEnvPrefixes {
				if strings.HasSuffix(k, suffix) {
					delete(merged, k)
					break
				}
			}
		}
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}
