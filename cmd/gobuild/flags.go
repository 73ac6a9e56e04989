package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/gobuild/core/internal/executor"
)

// buildFlags holds the flag values shared by build and install (spec.md
// §6): --jobs, --keep-going, --dry-run, --force-probe-execution,
// --check-outputs, --command-echo-mode, --job-limits.
type buildFlags struct {
	jobs         int
	keepGoing    bool
	dryRun       bool
	forceProbe   bool
	checkOutputs bool
	echoMode     string
	jobLimits    jobLimitsFlag
	projectFile  string
	buildDir     string
	noColor      bool
}

// jobLimitsFlag implements flag.Value for a repeatable
// --job-limits=pool=N flag.
type jobLimitsFlag map[string]int

func (f *jobLimitsFlag) String() string {
	if f == nil || *f == nil {
		return ""
	}
	var parts []string
	for pool, n := range *f {
		parts = append(parts, fmt.Sprintf("%s=%d", pool, n))
	}
	return strings.Join(parts, ",")
}

func (f *jobLimitsFlag) Set(s string) error {
	pool, limitStr, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("expected pool=limit, got %q", s)
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return fmt.Errorf("invalid limit in %q: %w", s, err)
	}
	if *f == nil {
		*f = make(jobLimitsFlag)
	}
	(*f)[pool] = limit
	return nil
}

func registerBuildFlags(fs *flag.FlagSet, bf *buildFlags) {
	fs.IntVar(&bf.jobs, "jobs", 0, "maximum number of parallel transformers (0 = host core count)")
	fs.BoolVar(&bf.keepGoing, "keep-going", false, "continue building unrelated transformers after a failure")
	fs.BoolVar(&bf.dryRun, "dry-run", false, "resolve and report what would build, without running any commands")
	fs.BoolVar(&bf.forceProbe, "force-probe-execution", false, "sets ForceTimestampCheck; no extra effect, since every source's content is re-read on each build anyway")
	fs.BoolVar(&bf.checkOutputs, "check-outputs", false, "verify every declared output exists after a transformer runs")
	fs.StringVar(&bf.echoMode, "command-echo-mode", "description", "one of: description, command-line, silent")
	fs.Var(&bf.jobLimits, "job-limits", "pool=limit, may be repeated")
	fs.StringVar(&bf.projectFile, "project", "project.toml", "path to the TOML project description")
	fs.StringVar(&bf.buildDir, "build-dir", "build", "persisted-graph and output build directory")
	fs.BoolVar(&bf.noColor, "no-color", false, "disable colorized progress output")
}

func (bf *buildFlags) toOptions() (executor.Options, error) {
	opts := executor.DefaultOptions()
	opts.MaxJobs = bf.jobs
	opts.KeepGoing = bf.keepGoing
	opts.DryRun = bf.dryRun
	opts.ForceTimestampCheck = bf.forceProbe
	opts.CheckOutputs = bf.checkOutputs
	opts.JobLimits = map[string]int(bf.jobLimits)

	mode, ok := executor.ParseEchoMode(bf.echoMode)
	if !ok {
		return opts, fmt.Errorf("invalid --command-echo-mode %q (want description, command-line, or silent)", bf.echoMode)
	}
	opts.EchoMode = mode
	return opts, nil
}
