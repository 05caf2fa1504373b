package daemon

// StartOptions configures the daemon (home, port, sync interval, runner, metrics).
type StartOptions struct {
	Home           string
	Port           int
	SyncInterval   float64 // workspace reconciliation interval in seconds
	Dev            bool
	PprofAddr      string
	Runtime        string   // "stub" or "subprocess"
	SubprocessCmd  string   // e.g. "agent-runner"
	SubprocessArgs []string // e.g. ["--json"]
	SandboxHome    string   // run subprocess inside bubblewrap with this dir as home (Linux only)
	EnableOtel     bool     // enable OpenTelemetry metrics (Prometheus exporter + HTTP/SSE instrumentation)
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
