// Package daemon runs the topiclab server as a managed process: singleton
// lock, pid/addr files, background start/stop, and clean shutdown that waits
// for in-flight agent jobs.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/TashanGKD/Tashan-TopicLab/internal/agent/runtime"
	"github.com/TashanGKD/Tashan-TopicLab/internal/config"
	"github.com/TashanGKD/Tashan-TopicLab/internal/httpapi"
	"github.com/TashanGKD/Tashan-TopicLab/internal/notify"
	"github.com/TashanGKD/Tashan-TopicLab/internal/otel"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/models"
)

const defaultPort = 3986

func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = models.DefaultSyncIntervalSec
	}

	// Ensure dirs exist.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(config.WorkspaceBase(opts.Home), 0o755); err != nil {
		return err
	}

	// Acquire singleton lock (released on exit).
	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	// Optional pprof.
	startPprof(opts.PprofAddr)

	agentCfg, err := config.LoadAgentConfig(opts.Home)
	if err != nil {
		return err
	}
	runner, err := buildRunner(opts, agentCfg)
	if err != nil {
		return err
	}

	// Write PID + addr files.
	pid := os.Getpid()
	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	addr := fmt.Sprintf("0.0.0.0:%d", opts.Port)
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	// Early port check for clearer error.
	if err := checkPortAvailable(opts.Port); err != nil {
		return err
	}

	srvOpts := httpapi.ServerOptions{
		Home:      opts.Home,
		Addr:      addr,
		Dev:       opts.Dev,
		APIKey:    os.Getenv("TOPICLAB_API_KEY"),
		Runner:    runner,
		RunnerEnv: agentCfg.Env(),
	}
	if nc, err := config.LoadNotifyConfig(opts.Home); err == nil && nc.SlackWebhookURL != "" {
		srvOpts.Notifier = notify.SlackWebhook{
			WebhookURL: nc.SlackWebhookURL,
			Channel:    nc.SlackChannel,
			Username:   nc.SlackUsername,
		}
	}
	if opts.EnableOtel {
		metricsHandler, err := otel.InitMeterProvider(ctx, "topiclab")
		if err != nil {
			slog.Warn("otel init failed, using legacy metrics", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
		}
	}
	app, err := httpapi.NewApp(srvOpts)
	if err != nil {
		return err
	}
	if opts.EnableOtel {
		_ = otel.InitMetricsWithTopicCount(ctx, func() (pending, running, completed, failed int64) {
			for _, t := range app.Topics.List() {
				switch t.RoundtableStatus {
				case models.RoundtablePending:
					pending++
				case models.RoundtableRunning:
					running++
				case models.RoundtableCompleted:
					completed++
				case models.RoundtableFailed:
					failed++
				}
			}
			return pending, running, completed, failed
		})
	}

	slog.Info("daemon starting", "addr", addr, "home", opts.Home, "runner", runner.Name())
	errCh := make(chan error, 1)
	go func() {
		// Periodic workspace reconciliation runs alongside the HTTP server.
		go app.RunSync(ctx, time.Duration(opts.SyncInterval*float64(time.Second)))
		errCh <- app.Server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Server.Shutdown(shutdownCtx)
		// In-flight agent jobs persist their terminal state before we exit.
		app.Jobs.Wait()
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildRunner selects the agent runner. The subprocess runner requires model
// credentials; missing credentials are a startup error, not a per-request one.
func buildRunner(opts StartOptions, agentCfg config.AgentConfig) (runtime.Runner, error) {
	cmd := opts.SubprocessCmd
	if cmd == "" {
		cmd = agentCfg.RunnerCommand
	}
	args := opts.SubprocessArgs
	if len(args) == 0 {
		args = agentCfg.RunnerArgs
	}

	switch opts.Runtime {
	case "", "stub":
		if opts.Runtime == "" && cmd != "" {
			// Runner configured in config.yaml; use it unless stub was forced.
			if err := agentCfg.Validate(); err != nil {
				return nil, err
			}
			return runtime.SubprocessRunner{Command: cmd, Args: args, SandboxHome: opts.SandboxHome}, nil
		}
		return runtime.StubRunner{Output: "stub runner: no agent capability configured"}, nil
	case "subprocess":
		if cmd == "" {
			return nil, errors.New("runtime=subprocess requires a runner command")
		}
		if err := agentCfg.Validate(); err != nil {
			return nil, err
		}
		return runtime.SubprocessRunner{Command: cmd, Args: args, SandboxHome: opts.SandboxHome}, nil
	default:
		return nil, fmt.Errorf("unknown runtime %q", opts.Runtime)
	}
}

func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	// Ensure dirs exist before starting.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return 0, err
	}

	// Best-effort: refuse to start if already running.
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("topiclab already running (pid %d)", st.PID)
	}

	logFile := filepath.Join(protectedDir(opts.Home), "daemon.log")
	stderr, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for child lifetime; closing here may break writes on some platforms.

	args := []string{
		"daemon",
		"--home", opts.Home,
		"--port", strconv.Itoa(opts.Port),
		"--sync-interval", fmt.Sprintf("%g", opts.SyncInterval),
	}
	if opts.Runtime != "" {
		args = append(args, "--runtime", opts.Runtime)
	}
	if opts.SubprocessCmd != "" {
		args = append(args, "--runner-cmd", opts.SubprocessCmd)
	}
	if opts.SandboxHome != "" {
		args = append(args, "--sandbox-home", opts.SandboxHome)
	}
	if opts.Dev {
		args = append(args, "--dev")
	}
	if opts.EnableOtel {
		args = append(args, "--otel")
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Wait briefly for pid file to appear or process to die.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Fallback to started pid even if status isn't ready yet.
	return cmd.Process.Pid, nil
}

func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		// On unix FindProcess always succeeds; keep this for completeness.
		return false, errors.New("topiclab is not running")
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = proc.Kill()
	return true, nil
}

func Status(ctx context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pidStr := strings.TrimSpace(string(pb))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}

	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}

	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("port %d is already in use", port)
	}
	_ = ln.Close()
	return nil
}
