package kernel

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"

	"github.com/snailos/snail/capability"
	"github.com/snailos/snail/deferred"
	"github.com/snailos/snail/internal/metrics"
	"github.com/snailos/snail/registry"
)

// ErrNoSuchProcess is returned for unknown pids.
var ErrNoSuchProcess = errors.New("no such process")

// ProcState is a process's position in its lifecycle.
type ProcState int

const (
	// ProcInitialising processes are loaded but have not signalled readiness.
	// Programs that never do the handshake stay here until they exit.
	ProcInitialising ProcState = iota
	ProcRunning
	ProcExited
)

func (s ProcState) String() string {
	switch s {
	case ProcInitialising:
		return "initialising"
	case ProcRunning:
		return "running"
	case ProcExited:
		return "exited"
	default:
		return fmt.Sprintf("procstate(%d)", int(s))
	}
}

// Process is a program started by Exec.
type Process struct {
	PID    int
	Path   string
	Module registry.ModuleID

	reg  *registry.Registry
	exit deferred.Pending[any]
}

// Exited reports whether the process has finished.
func (p *Process) Exited() bool {
	return p.exit.Settled()
}

// State derives the lifecycle state from the exit value and the module's
// registry entry.
func (p *Process) State() ProcState {
	switch {
	case p.exit.Settled():
		return ProcExited
	case p.reg.State(p.Module) == registry.Ready:
		return ProcRunning
	default:
		return ProcInitialising
	}
}

// Exec loads path through the bundle's loader and starts it as a wrapped
// module wired to the bundle's terminal. It returns once the program is
// loaded; the program itself runs on its own goroutine.
func (k *Kernel) Exec(ctx context.Context, b capability.Bundle, file string, args ...string) (int, error) {
	m, err := b.Load(ctx, file).Wait(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "exec %s", file)
	}

	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return 0, ErrClosed
	}
	k.lastPID++
	pid := k.lastPID
	exit := b.NewDeferred()
	p := &Process{
		PID:    pid,
		Path:   file,
		Module: registry.ModuleID(fmt.Sprintf("%s.%d", path.Base(file), pid)),
		reg:    k.registry,
		exit:   exit.Pending(),
	}
	k.procs[pid] = p
	k.mu.Unlock()

	t := b.Terminal()
	modConfig := wazero.NewModuleConfig().
		WithName(string(p.Module)).
		WithArgs(append([]string{file}, args...)...).
		WithStdout(t).
		WithStderr(t).
		WithStdin(t)
	for _, key := range sortedKeys(k.cfg.env) {
		modConfig = modConfig.WithEnv(key, k.cfg.env[key])
	}

	k.logger.Debug("exec", "pid", pid, "path", file, "module", p.Module)

	go func() {
		_, err := k.runtime.InstantiateModule(ctx, m.Compiled, modConfig)
		code, err := exitCode(err)
		if err != nil {
			k.logger.Error("process failed", "pid", pid, "error", err)
			metrics.ProcessExits.WithLabelValues("failed").Inc()
			exit.Reject(errors.Wrapf(err, "pid %d", pid))
			return
		}
		k.logger.Debug("process exited", "pid", pid, "code", code)
		metrics.ProcessExits.WithLabelValues(exitStatus(code)).Inc()
		exit.Resolve(code)
	}()

	return pid, nil
}

func exitStatus(code uint32) string {
	if code == 0 {
		return "ok"
	}
	return "nonzero"
}

func exitCode(err error) (uint32, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

// Wait blocks until pid exits and returns its exit code. Once the process
// has exited it is removed from the process table; pids are not reused.
func (k *Kernel) Wait(ctx context.Context, pid int) (uint32, error) {
	p, err := k.Process(pid)
	if err != nil {
		return 0, err
	}
	if _, err := p.exit.Wait(ctx); !p.exit.Settled() {
		return 0, err
	}
	v, _, err := p.exit.Result()

	k.mu.Lock()
	delete(k.procs, pid)
	k.mu.Unlock()

	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

// Process returns the process with the given pid.
func (k *Kernel) Process(pid int) (*Process, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p, ok := k.procs[pid]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchProcess, "pid %d", pid)
	}
	return p, nil
}

// Processes returns the processes not yet reaped by Wait, ordered by pid.
func (k *Kernel) Processes() []*Process {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]*Process, 0, len(k.procs))
	for _, p := range k.procs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// ReadMemory copies n bytes at offset out of a ready module's heap.
func (k *Kernel) ReadMemory(id registry.ModuleID, offset, n uint32) ([]byte, error) {
	h, err := k.registry.Acquire(id)
	if err != nil {
		return nil, err
	}
	mem := h.Memory()
	if mem == nil {
		return nil, errors.Errorf("read %s: no memory", id)
	}
	buf, ok := mem.Read(offset, n)
	if !ok {
		return nil, errors.Errorf("read %s: range [%d, %d) out of bounds", id, offset, offset+n)
	}
	return append([]byte(nil), buf...), nil
}

// WriteMemory copies data into a ready module's heap at offset.
func (k *Kernel) WriteMemory(id registry.ModuleID, offset uint32, data []byte) error {
	h, err := k.registry.Acquire(id)
	if err != nil {
		return err
	}
	mem := h.Memory()
	if mem == nil || !mem.Write(offset, data) {
		return errors.Errorf("write %s: range [%d, %d) out of bounds", id, offset, offset+uint32(len(data)))
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
