package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/TashanGKD/Tashan-TopicLab/internal/sandbox"
)

// SubprocessRunner shells out to an agent CLI: stdin carries the JSON
// RunRequest, stdout streams NDJSON events, and the final event of type
// "result" carries num_turns, total_cost_usd, and the result text. Non-JSON
// stdout lines are collected as fallback output.
//
// When SandboxHome is set and bubblewrap is available, the subprocess runs
// with only the request's working directory writable.
type SubprocessRunner struct {
	Command     string
	Args        []string
	SandboxHome string
}

func (SubprocessRunner) Name() string { return "subprocess" }

// resultEvent is the terminal NDJSON line emitted by the agent CLI.
type resultEvent struct {
	Type         string   `json:"type"`
	NumTurns     int      `json:"num_turns"`
	TotalCostUSD *float64 `json:"total_cost_usd"`
	Result       string   `json:"result"`
	IsError      bool     `json:"is_error"`
}

func (r SubprocessRunner) Run(ctx context.Context, req RunRequest, emit func(Event)) (Result, error) {
	if r.Command == "" {
		return Result{}, errors.New("subprocess command is required")
	}
	cmd := sandbox.WrapCommand(ctx, r.SandboxHome, req.Dir, r.Command, r.Args)
	cmd.Dir = req.Dir
	cmd.Env = os.Environ()
	for k, v := range req.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}
	cmd.Stdin = strings.NewReader(string(reqJSON) + "\n")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	if err := cmd.Start(); err != nil {
		return Result{}, err
	}
	defer func() {
		if ctx.Err() != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		if err := cmd.Wait(); err != nil {
			slog.Warn("agent subprocess exited with error", "err", err)
		}
	}()

	var res Result
	var sawResult bool
	var fallback strings.Builder
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			fallback.WriteString(line)
			fallback.WriteString("\n")
			continue
		}
		if probe.Type == "result" {
			var re resultEvent
			if err := json.Unmarshal([]byte(line), &re); err == nil {
				sawResult = true
				res.NumTurns = re.NumTurns
				res.TotalCostUSD = re.TotalCostUSD
				res.Output = re.Result
				if re.IsError {
					return res, errors.New("agent run returned an error result")
				}
			}
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		emit(ev)
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	if !sawResult {
		res.Output = strings.TrimSpace(fallback.String())
	}
	return res, nil
}
