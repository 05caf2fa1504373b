package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestStartForegroundRequiresHome(t *testing.T) {
	err := StartForeground(context.Background(), StartOptions{})
	if err == nil {
		t.Fatal("expected error for empty home")
	}
}

func TestStatusNotRunning(t *testing.T) {
	st, err := Status(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running {
		t.Fatal("expected not running with no pid file")
	}
}

func TestStatusRemovesStalePidFile(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(protectedDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	// A pid that cannot exist on this system.
	pf := pidPath(home)
	if err := os.WriteFile(pf, []byte("99999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := Status(context.Background(), home)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running {
		t.Fatal("expected not running for stale pid")
	}
	if _, err := os.Stat(pf); !os.IsNotExist(err) {
		t.Fatal("expected stale pid file removed")
	}
}

func TestStatusRunningReportsAddr(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(protectedDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	// Our own pid is certainly alive.
	pid := os.Getpid()
	if err := os.WriteFile(pidPath(home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(addrPath(home), []byte("0.0.0.0:3986\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := Status(context.Background(), home)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || st.PID != pid {
		t.Fatalf("Status = %+v, want running with pid %d", st, pid)
	}
	if st.Addr != "0.0.0.0:3986" {
		t.Fatalf("Addr = %q", st.Addr)
	}
}

func TestStopNotRunning(t *testing.T) {
	stopped, err := Stop(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped {
		t.Fatal("expected no-op stop when not running")
	}
}

func TestPathsUnderProtectedDir(t *testing.T) {
	home := t.TempDir()
	for _, p := range []string{pidPath(home), lockPath(home), addrPath(home)} {
		if filepath.Dir(p) != protectedDir(home) {
			t.Errorf("%s not under %s", p, protectedDir(home))
		}
	}
}
