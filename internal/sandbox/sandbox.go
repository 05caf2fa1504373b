// Package sandbox confines agent subprocesses with bubblewrap on Linux.
package sandbox

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
)

// WrapCommand returns an *exec.Cmd that runs binary with args. If home is non-empty and
// bubblewrap (bwrap) is available on Linux, the command runs inside a minimal bubblewrap
// sandbox. If topicDir is non-empty, only topicDir is writable and home is read-only (so
// protected/ and other topics under home cannot be written). Otherwise the whole home is
// writable. Use topicDir when running an agent so it can only write its own topic workspace.
func WrapCommand(ctx context.Context, home, topicDir, binary string, args []string) *exec.Cmd {
	if home == "" || runtime.GOOS != "linux" {
		return exec.CommandContext(ctx, binary, args...)
	}
	bwrap, err := exec.LookPath("bwrap")
	if err != nil {
		return exec.CommandContext(ctx, binary, args...)
	}
	absHome, err := filepath.Abs(home)
	if err != nil {
		return exec.CommandContext(ctx, binary, args...)
	}
	var bwrapArgs []string
	if topicDir != "" {
		absTopic, _ := filepath.Abs(topicDir)
		if absTopic != "" && (absTopic == absHome || (len(absTopic) > len(absHome) && absTopic[len(absHome)] == filepath.Separator)) {
			// Restrict writes to the topic workspace only: home read-only, topic dir rw.
			bwrapArgs = []string{
				"--ro-bind", absHome, absHome,
				"--bind", absTopic, absTopic,
				"--ro-bind", "/usr", "/usr",
				"--ro-bind", "/lib", "/lib",
				"--ro-bind", "/lib64", "/lib64",
				"--dev", "/dev",
				"--proc", "/proc",
				"--tmpfs", "/tmp",
				"--unshare-pid",
			}
		}
	}
	if bwrapArgs == nil {
		bwrapArgs = []string{
			"--bind", absHome, absHome,
			"--ro-bind", "/usr", "/usr",
			"--ro-bind", "/lib", "/lib",
			"--ro-bind", "/lib64", "/lib64",
			"--dev", "/dev",
			"--proc", "/proc",
			"--tmpfs", "/tmp",
			"--unshare-pid",
		}
	}
	bwrapArgs = append(bwrapArgs, "--", binary)
	bwrapArgs = append(bwrapArgs, args...)
	return exec.CommandContext(ctx, bwrap, bwrapArgs...)
}
