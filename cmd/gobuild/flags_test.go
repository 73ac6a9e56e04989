package main

import (
	"flag"
	"testing"

	"github.com/gobuild/core/internal/executor"
)

func TestRegisterBuildFlagsDefaults(t *testing.T) {
	bf := &buildFlags{}
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	registerBuildFlags(fs, bf)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	opts, err := bf.toOptions()
	if err != nil {
		t.Fatalf("toOptions: %v", err)
	}
	if opts.EchoMode != executor.EchoDescription {
		t.Errorf("default EchoMode = %v, want EchoDescription", opts.EchoMode)
	}
	if opts.KeepGoing || opts.DryRun || opts.ForceTimestampCheck || opts.CheckOutputs {
		t.Errorf("unexpected non-default bool flag: %+v", opts)
	}
}

func TestJobLimitsFlagParsing(t *testing.T) {
	bf := &buildFlags{}
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	registerBuildFlags(fs, bf)
	if err := fs.Parse([]string{"-job-limits=compile=2", "-job-limits=link=1"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	opts, err := bf.toOptions()
	if err != nil {
		t.Fatalf("toOptions: %v", err)
	}
	if opts.JobLimits["compile"] != 2 || opts.JobLimits["link"] != 1 {
		t.Errorf("JobLimits = %+v, want compile=2 link=1", opts.JobLimits)
	}
}

func TestEchoModeFlagRejectsUnknownValue(t *testing.T) {
	bf := &buildFlags{}
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	registerBuildFlags(fs, bf)
	if err := fs.Parse([]string{"-command-echo-mode=nonsense"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := bf.toOptions(); err == nil {
		t.Fatal("expected an error for an unknown echo mode")
	}
}
