package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/lock"
	"github.com/marmos91/dittostream/pkg/registry"
	"github.com/marmos91/dittostream/pkg/stream"
	"github.com/marmos91/dittostream/pkg/wrapper"
)

// chunkSize is the read and write granularity of cat, put and append.
const chunkSize = 64 * 1024

// errFailed is returned after the hook already reported its warning.
var errFailed = errors.New("operation failed")

// env is what a command runs against.
type env struct {
	w      *wrapper.Wrapper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	warnings int
}

func newEnv(reg *registry.Registry, locks *lock.Relay, stdin io.Reader, stdout, stderr io.Writer) *env {
	e := &env{stdin: stdin, stdout: stdout, stderr: stderr}
	e.w = wrapper.New(reg, wrapper.Options{Warnings: e.warn, Locks: locks})
	return e
}

func (e *env) warn(w wrapper.Warning) {
	e.warnings++
	fmt.Fprintf(e.stderr, "warning: %s\n", w)
}

// check converts a hook result into a command error.
func check(ok bool) error {
	if !ok {
		return errFailed
	}
	return nil
}

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"protocols": cmdProtocols,
	"cat":       cmdCat,
	"put":       cmdPut,
	"append":    cmdAppend,
	"ls":        cmdList,
	"stat":      cmdStat,
	"mv":        cmdMove,
	"mkdir":     cmdMkdir,
	"rmdir":     cmdRmdir,
	"rm":        cmdRemove,
	"touch":     cmdTouch,
	"chmod":     cmdChmod,
}

func exactArgs(name string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func cmdProtocols(_ context.Context, e *env, args []string) error {
	if err := exactArgs("protocols", args, 0); err != nil {
		return err
	}
	for _, p := range e.w.Protocols() {
		fmt.Fprintln(e.stdout, p)
	}
	return nil
}

func cmdCat(ctx context.Context, e *env, args []string) error {
	if err := exactArgs("cat", args, 1); err != nil {
		return err
	}

	h, ok := e.w.Open(ctx, args[0], "r", 0)
	if !ok {
		return errFailed
	}
	defer h.Close()

	for !h.EOF() {
		data := h.Read(chunkSize)
		if len(data) == 0 {
			break
		}
		if _, err := e.stdout.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func cmdPut(ctx context.Context, e *env, args []string) error {
	if err := exactArgs("put", args, 1); err != nil {
		return err
	}
	return e.copyIn(ctx, args[0], "w")
}

func cmdAppend(ctx context.Context, e *env, args []string) error {
	if err := exactArgs("append", args, 1); err != nil {
		return err
	}
	return e.copyIn(ctx, args[0], "a")
}

// copyIn streams stdin into uri opened with mode.
func (e *env) copyIn(ctx context.Context, uri, mode string) error {
	h, ok := e.w.Open(ctx, uri, mode, 0)
	if !ok {
		return errFailed
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := e.stdin.Read(buf)
		if n > 0 && h.Write(buf[:n]) < n {
			h.Close()
			return errFailed
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			h.Close()
			return fmt.Errorf("failed to read input: %w", err)
		}
	}

	before := e.warnings
	h.Close()
	return check(e.warnings == before)
}

func cmdList(ctx context.Context, e *env, args []string) error {
	var long bool

	flagSet := pflag.NewFlagSet("ls", pflag.ContinueOnError)
	flagSet.BoolVarP(&long, "long", "l", false, "show mode, size and modification time")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := exactArgs("ls", flagSet.Args(), 1); err != nil {
		return err
	}
	uri := flagSet.Arg(0)

	d, ok := e.w.OpenDir(ctx, uri)
	if !ok {
		return errFailed
	}
	defer d.Close()

	if !long {
		for name, ok := d.Read(); ok; name, ok = d.Read() {
			fmt.Fprintln(e.stdout, name)
		}
		return nil
	}

	protocol, dir, err := wrapper.ParseURI(uri)
	if err != nil {
		return err
	}
	for name, ok := d.Read(); ok; name, ok = d.Read() {
		st, ok := e.w.Stat(ctx, wrapper.BuildURI(protocol, backend.Join(dir, name)), stream.StatQuiet)
		if !ok {
			continue
		}
		fmt.Fprintf(e.stdout, "%s %10d %s %s\n", st.FileMode(), st.Size, formatTime(st.Mtime), name)
	}
	return nil
}

func cmdStat(ctx context.Context, e *env, args []string) error {
	if err := exactArgs("stat", args, 1); err != nil {
		return err
	}

	st, ok := e.w.Stat(ctx, args[0], 0)
	if !ok {
		return errFailed
	}

	fmt.Fprintf(e.stdout, "  Path: %s\n", args[0])
	fmt.Fprintf(e.stdout, "  Mode: %s (%o)\n", st.FileMode(), st.Mode)
	fmt.Fprintf(e.stdout, "  Size: %d\n", st.Size)
	fmt.Fprintf(e.stdout, "Modify: %s\n", formatTime(st.Mtime))
	return nil
}

func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func cmdMove(ctx context.Context, e *env, args []string) error {
	if err := exactArgs("mv", args, 2); err != nil {
		return err
	}
	return check(e.w.Rename(ctx, args[0], args[1]))
}

func cmdMkdir(ctx context.Context, e *env, args []string) error {
	var parents bool

	flagSet := pflag.NewFlagSet("mkdir", pflag.ContinueOnError)
	flagSet.BoolVarP(&parents, "parents", "p", false, "create missing parent directories")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := exactArgs("mkdir", flagSet.Args(), 1); err != nil {
		return err
	}

	options := 0
	if parents {
		options |= stream.MkdirRecursive
	}
	return check(e.w.Mkdir(ctx, flagSet.Arg(0), 0o755, options))
}

func cmdRmdir(ctx context.Context, e *env, args []string) error {
	var recursive bool

	flagSet := pflag.NewFlagSet("rmdir", pflag.ContinueOnError)
	flagSet.BoolVarP(&recursive, "recursive", "r", false, "remove the directory and its contents")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := exactArgs("rmdir", flagSet.Args(), 1); err != nil {
		return err
	}

	options := 0
	if recursive {
		options |= stream.RmdirRecursive
	}
	return check(e.w.Rmdir(ctx, flagSet.Arg(0), options))
}

func cmdRemove(ctx context.Context, e *env, args []string) error {
	if err := exactArgs("rm", args, 1); err != nil {
		return err
	}
	return check(e.w.Unlink(ctx, args[0]))
}

func cmdTouch(ctx context.Context, e *env, args []string) error {
	if err := exactArgs("touch", args, 1); err != nil {
		return err
	}
	return check(e.w.Touch(ctx, args[0]))
}

func cmdChmod(ctx context.Context, e *env, args []string) error {
	if err := exactArgs("chmod", args, 2); err != nil {
		return err
	}

	perm, err := strconv.ParseUint(args[0], 8, 32)
	if err != nil {
		return fmt.Errorf("chmod: invalid mode %q", args[0])
	}
	return check(e.w.Chmod(ctx, args[1], uint32(perm)))
}
