package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gobuild/core/internal/projectfile"
	"github.com/gobuild/core/internal/resolvedproject"
)

// builtinRegistry supplies a couple of zero-configuration rule command
// builders so that a project description file can be exercised without
// compiling a language-specific rule package against this binary first.
// Real rule authorship (a C++ compiler driver, a code generator, ...) is
// out of scope for this reference CLI exactly as it is for the core
// (spec.md §1 Non-goals); these two rules exist only to prove a full
// resolve/build/clean/install cycle end to end.
func builtinRegistry() projectfile.Registry {
	return projectfile.Registry{
		"builtin.copy":   copyRuleCommands,
		"builtin.concat": concatRuleCommands,
	}
}

func copyRuleCommands(inputs, outputs []string, _ map[string]resolvedproject.PropertyValue) ([]resolvedproject.Command, error) {
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("builtin.copy: expected exactly one input and one output, got %d/%d", len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	return []resolvedproject.Command{{
		Kind:        resolvedproject.ScriptCommandKind,
		Description: fmt.Sprintf("copy %s", in),
		ScriptHandle: func() error {
			return copyFile(in, out)
		},
	}}, nil
}

func concatRuleCommands(inputs, outputs []string, _ map[string]resolvedproject.PropertyValue) ([]resolvedproject.Command, error) {
	if len(outputs) != 1 {
		return nil, fmt.Errorf("builtin.concat: expected exactly one output, got %d", len(outputs))
	}
	out := outputs[0]
	in := append([]string(nil), inputs...)
	return []resolvedproject.Command{{
		Kind:        resolvedproject.ScriptCommandKind,
		Description: fmt.Sprintf("concat %d file(s) into %s", len(in), out),
		ScriptHandle: func() error {
			return concatFiles(in, out)
		},
	}}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func concatFiles(srcs []string, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	for _, src := range srcs {
		in, err := os.Open(src)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
