package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyRuleCommandsCopiesInputToOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("hello"), 0o644))

	commands, err := copyRuleCommands([]string{in}, []string{out}, nil)
	require.NoError(t, err)
	require.Len(t, commands, 1)

	require.NoError(t, commands[0].ScriptHandle())

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestConcatRuleCommandsJoinsInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(a, []byte("foo"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("bar"), 0o644))

	commands, err := concatRuleCommands([]string{a, b}, []string{out}, nil)
	require.NoError(t, err)
	require.Len(t, commands, 1)
	require.NoError(t, commands[0].ScriptHandle())

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "foobar", string(got))
}

func TestCopyRuleCommandsRejectsWrongArity(t *testing.T) {
	_, err := copyRuleCommands([]string{"a", "b"}, []string{"out"}, nil)
	assert.Error(t, err)
}
