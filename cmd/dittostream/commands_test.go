package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend/memory"
	"github.com/marmos91/dittostream/pkg/lock"
	"github.com/marmos91/dittostream/pkg/registry"
)

type cliFixture struct {
	env    *env
	stdin  *bytes.Buffer
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	reg := registry.New()
	_, err := reg.Register(context.Background(), "mem", memory.New(memory.Config{}), registry.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.UnregisterAll() })

	fx := &cliFixture{stdin: &bytes.Buffer{}, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	fx.env = newEnv(reg, lock.NewRelay(t.TempDir()), fx.stdin, fx.stdout, fx.stderr)
	return fx
}

func (fx *cliFixture) run(t *testing.T, name string, args ...string) error {
	t.Helper()
	fx.stdout.Reset()
	return commands[name](context.Background(), fx.env, args)
}

func TestPutCatAppend(t *testing.T) {
	fx := newCLIFixture(t)

	fx.stdin.WriteString("hello")
	require.NoError(t, fx.run(t, "put", "mem://docs/a.txt"))

	fx.stdin.WriteString(" world")
	require.NoError(t, fx.run(t, "append", "mem://docs/a.txt"))

	require.NoError(t, fx.run(t, "cat", "mem://docs/a.txt"))
	assert.Equal(t, "hello world", fx.stdout.String())
	assert.Empty(t, fx.stderr.String())
}

func TestCatMissingWarns(t *testing.T) {
	fx := newCLIFixture(t)

	err := fx.run(t, "cat", "mem://missing")
	assert.ErrorIs(t, err, errFailed)
	assert.Contains(t, fx.stderr.String(), "warning: fopen(): No such file or directory")
}

func TestListAndStat(t *testing.T) {
	fx := newCLIFixture(t)

	require.NoError(t, fx.run(t, "mkdir", "-p", "mem://a/b"))
	require.NoError(t, fx.run(t, "touch", "mem://a/f"))

	require.NoError(t, fx.run(t, "ls", "mem://a"))
	assert.Equal(t, []string{"b", "f"}, strings.Fields(fx.stdout.String()))

	require.NoError(t, fx.run(t, "ls", "-l", "mem://a"))
	lines := strings.Split(strings.TrimSpace(fx.stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "d"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " f"), lines[1])

	require.NoError(t, fx.run(t, "stat", "mem://a/f"))
	assert.Contains(t, fx.stdout.String(), "Mode: -rw-r--r-- (100644)")
	assert.Contains(t, fx.stdout.String(), "Size: 0")
}

func TestMoveRemoveRmdir(t *testing.T) {
	fx := newCLIFixture(t)

	require.NoError(t, fx.run(t, "touch", "mem://x"))
	require.NoError(t, fx.run(t, "mkdir", "mem://d"))
	require.NoError(t, fx.run(t, "mv", "mem://x", "mem://d/y"))
	require.NoError(t, fx.run(t, "rm", "mem://d/y"))
	require.NoError(t, fx.run(t, "rmdir", "mem://d"))

	assert.ErrorIs(t, fx.run(t, "rm", "mem://d/y"), errFailed)
}

func TestChmod(t *testing.T) {
	fx := newCLIFixture(t)

	require.NoError(t, fx.run(t, "touch", "mem://f"))
	require.NoError(t, fx.run(t, "chmod", "600", "mem://f"))

	require.NoError(t, fx.run(t, "stat", "mem://f"))
	assert.Contains(t, fx.stdout.String(), "(100600)")

	assert.ErrorContains(t, fx.run(t, "chmod", "9x", "mem://f"), "invalid mode")
}

func TestProtocols(t *testing.T) {
	fx := newCLIFixture(t)

	require.NoError(t, fx.run(t, "protocols"))
	assert.Equal(t, "mem\n", fx.stdout.String())

	assert.ErrorContains(t, fx.run(t, "protocols", "extra"), "expected 0 argument(s)")
}
