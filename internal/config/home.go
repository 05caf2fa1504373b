package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

type homeKey struct{}

// WithHome stores the topiclab home path in the context.
func WithHome(ctx context.Context, home string) context.Context {
	return context.WithValue(ctx, homeKey{}, home)
}

// HomeFrom returns the topiclab home path from the context, if set.
func HomeFrom(ctx context.Context) (string, bool) {
	v := ctx.Value(homeKey{})
	s, ok := v.(string)
	return s, ok
}

// MustHomeFrom returns the home path from the context, or panics if not set.
func MustHomeFrom(ctx context.Context) string {
	if h, ok := HomeFrom(ctx); ok && h != "" {
		return h
	}
	panic("topiclab home missing from context")
}

// ResolveHome returns the topiclab home directory (override, TOPICLAB_HOME, or default ~/.topiclab).
func ResolveHome(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	if env := os.Getenv("TOPICLAB_HOME"); env != "" {
		return filepath.Clean(env), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine user home directory")
	}
	return filepath.Join(home, ".topiclab"), nil
}

// WorkspaceBase returns the root under which topic workspaces live.
func WorkspaceBase(home string) string {
	return filepath.Join(home, "workspace")
}

// SkillsDir returns the directory holding expert and moderator skill files.
func SkillsDir(home string) string {
	return filepath.Join(home, "skills")
}
