package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobuild/core/internal/resolvedproject"
)

// argvLengthThreshold is the point past which runCommand moves the
// argument list into a response file rather than passing it on the
// process argv, per spec.md §9 ("handles argv length limits (moving to a
// response file when exceeded)"). 32KiB is comfortably below every
// mainstream OS's real limit while still exercising the response-file
// path in realistic tests.
const argvLengthThreshold = 32 * 1024

// runCommand executes a single resolvedproject.Command and returns a
// structured result, never panicking on the subprocess's behalf (spec.md
// §9: "a single method taking the full ProcessCommand struct"; "Do not
// conflate cancellation with errors").
func runCommand(ctx context.Context, cmd resolvedproject.Command) (ProcessResult, *TransformerError) {
	if cmd.Kind == resolvedproject.ScriptCommandKind {
		return runScriptCommand(ctx, cmd)
	}
	return runProcessCommand(ctx, cmd)
}

func runScriptCommand(ctx context.Context, cmd resolvedproject.Command) (ProcessResult, *TransformerError) {
	if cmd.ScriptHandle == nil {
		return ProcessResult{}, &TransformerError{Cause: CommandCrashed, Signal: "missing script handle"}
	}
	err := cmd.ScriptHandle()
	if err != nil {
		if ctx.Err() != nil {
			return ProcessResult{}, &TransformerError{Cause: CommandTimedOut, Err: ctx.Err()}
		}
		return ProcessResult{Success: false}, &TransformerError{Cause: CommandCrashed, Err: err}
	}
	return ProcessResult{Success: true, CommandLine: cmd.Description}, nil
}

func runProcessCommand(ctx context.Context, cmd resolvedproject.Command) (ProcessResult, *TransformerError) {
	argv := cmd.Argv
	cleanupResponseFile := func() {}

	needsResponseFile := cmd.ResponseFilePolicy == resolvedproject.ResponseFileAlways ||
		(cmd.ResponseFilePolicy == resolvedproject.ResponseFileAuto && argvTotalLength(argv) > argvLengthThreshold)
	if needsResponseFile {
		rspPath, err := writeResponseFile(argv)
		if err != nil {
			return ProcessResult{}, &TransformerError{Cause: CommandCrashed, Err: fmt.Errorf("writing response file: %w", err)}
		}
		argv = []string{"@" + rspPath}
		cleanupResponseFile = func() { os.Remove(rspPath) }
	}
	defer cleanupResponseFile()

	runCtx := ctx
	var cancelTimeout context.CancelFunc
	if cmd.TimeoutSeconds > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, time.Duration(cmd.TimeoutSeconds)*time.Second)
		defer cancelTimeout()
	}

	execCmd := exec.CommandContext(runCtx, cmd.Executable, argv...)
	execCmd.Dir = cmd.WorkingDir
	execCmd.Env = mergeEnv(os.Environ(), cmd.Env)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	cmdLine := commandLine(cmd.Executable, argv)
	result := ProcessResult{
		CommandLine: cmdLine,
		Stdout:      stdout.Bytes(),
		Stderr:      stderr.Bytes(),
	}

	if err == nil {
		result.Success = true
		result.ExitCode = 0
		if cmd.StdoutRedirect != "" {
			if werr := os.WriteFile(cmd.StdoutRedirect, stdout.Bytes(), 0o644); werr != nil {
				return result, &TransformerError{Cause: CommandCrashed, Err: werr}
			}
		}
		if cmd.StderrRedirect != "" {
			if werr := os.WriteFile(cmd.StderrRedirect, stderr.Bytes(), 0o644); werr != nil {
				return result, &TransformerError{Cause: CommandCrashed, Err: werr}
			}
		}
		return result, nil
	}

	if runCtx.Err() != nil {
		// Either our own timeout or a cancellation from further up.
		return result, &TransformerError{Cause: CommandTimedOut, Err: runCtx.Err()}
	}

	var exitErr *exec.ExitError
	if errorsAs(err, &exitErr) {
		if exitErr.ProcessState != nil && !exitErr.ProcessState.Exited() {
			return result, &TransformerError{Cause: CommandCrashed, Signal: exitErr.ProcessState.String(), Err: err}
		}
		result.ExitCode = exitErr.ExitCode()
		return result, &TransformerError{Cause: CommandExited, ExitCode: result.ExitCode, Err: err}
	}
	return result, &TransformerError{Cause: CommandCrashed, Err: err}
}

// errorsAs reports whether err is itself an *exec.ExitError, using a
// direct type assertion (wrapped errors are not unwrapped), and stores it
// in target when it is.
func errorsAs(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func argvTotalLength(argv []string) int {
	total := 0
	for _, a := range argv {
		total += len(a) + 1
	}
	return total
}

func writeResponseFile(argv []string) (string, error) {
	f, err := os.CreateTemp("", "gobuild-rsp-*.txt")
	if err != nil {
		return "", err
	}
	defer f.Close()
	for _, a := range argv {
		if _, err := fmt.Fprintln(f, quoteIfNeeded(a)); err != nil {
			return "", err
		}
	}
	return f.Name(), nil
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for k := range overrides {
		seen[k] = true
	}
	for _, kv := range base {
		name := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			name = kv[:idx]
		}
		if !seen[name] {
			out = append(out, kv)
		}
	}
	for k, v := range overrides {
		out = append(out, k+"="+v)
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func commandLine(executable string, argv []string) string {
	var b strings.Builder
	b.WriteString(filepath.Base(executable))
	for _, a := range argv {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	return b.String()
}
