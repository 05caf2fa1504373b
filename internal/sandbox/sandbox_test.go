package sandbox

import (
	"context"
	"testing"
)

func TestWrapCommand_noHomeRunsPlain(t *testing.T) {
	cmd := WrapCommand(context.Background(), "", "", "echo", []string{"hi"})
	if cmd == nil {
		t.Fatal("nil cmd")
	}
	if len(cmd.Args) != 2 || cmd.Args[0] != "echo" || cmd.Args[1] != "hi" {
		t.Errorf("args: %v", cmd.Args)
	}
}

func TestWrapCommand_alwaysIncludesBinary(t *testing.T) {
	home := t.TempDir()
	cmd := WrapCommand(context.Background(), home, home+"/workspace/topics/t1", "agent-runner", []string{"--json"})
	if cmd == nil {
		t.Fatal("nil cmd")
	}
	// With or without bwrap on PATH, the binary and its args must survive.
	foundBin, foundArg := false, false
	for _, a := range cmd.Args {
		if a == "agent-runner" {
			foundBin = true
		}
		if a == "--json" {
			foundArg = true
		}
	}
	if !foundBin || !foundArg {
		t.Errorf("args: %v", cmd.Args)
	}
}

func TestWrapCommand_topicDirOutsideHomeFallsBackToHomeWritable(t *testing.T) {
	home := t.TempDir()
	other := t.TempDir()
	cmd := WrapCommand(context.Background(), home, other, "echo", nil)
	if cmd == nil {
		t.Fatal("nil cmd")
	}
	// A topic dir outside home must not appear as a writable bind.
	for i, a := range cmd.Args {
		if a == "--bind" && i+1 < len(cmd.Args) && cmd.Args[i+1] == other {
			t.Errorf("unexpected writable bind of %s: %v", other, cmd.Args)
		}
	}
}
