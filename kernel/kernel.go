// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package kernel mediates every privileged effect of procedures.
//
// Procedures run with an Env bound to their own key. Reads are free, and
// everything else goes through Syscall, which checks the request against the
// capability the procedure names and applies it inside a host checkpoint.
package kernel

import (
	"github.com/pkg/errors"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/log"
	"github.com/vechain/cap9/metrics"
	"github.com/vechain/cap9/proctable"
)

var logger = log.WithContext("pkg", "kernel")

var (
	metricSyscalls        = metrics.LazyLoadCounterVec("kernel_syscalls_count", []string{"action", "result"})
	metricSyscallDuration = metrics.LazyLoadHistogramVec("kernel_syscall_duration_us", []string{"action"}, metrics.BucketMicros)
	metricCallDepth       = metrics.LazyLoadHistogram("kernel_call_depth", metrics.BucketCallDepth)
	metricExecutions      = metrics.LazyLoadCounterVec("kernel_executions_count", []string{"result"})
	metricFrames          = metrics.LazyLoadGauge("kernel_frames")
	metricListLength      = metrics.LazyLoadGauge("kernel_list_length")
)

const DefaultMaxCallDepth = 16

// Options configures a Kernel. Zero values select defaults.
type Options struct {
	MaxCallDepth int
	// MaxProcedures bounds the procedure table index.
	MaxProcedures uint64
}

// Kernel is a capability kernel over a host.
// It is not safe for concurrent use.
type Kernel struct {
	host   host.Host
	table  *proctable.Table
	opts   Options
	frames []*env
}

// New attaches a kernel to the storage of h.
func New(h host.Host, opts Options) *Kernel {
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	var tableOpts []proctable.Option
	if opts.MaxProcedures > 0 {
		tableOpts = append(tableOpts, proctable.WithMaxIndex(opts.MaxProcedures))
	}
	return &Kernel{
		host:  h,
		table: proctable.New(h, tableOpts...),
		opts:  opts,
	}
}

// Deploy initializes storage of h and returns the kernel.
func Deploy(h host.Host, entryKey cap9.ProcedureKey, entryAddr cap9.Address, list ...caps.Capability) (*Kernel, error) {
	k := New(h, Options{})
	if err := k.Deploy(entryKey, entryAddr, list...); err != nil {
		return nil, err
	}
	return k, nil
}

// Deploy records the kernel address and registers the entry procedure.
// It fails on storage that already holds a kernel.
func (k *Kernel) Deploy(entryKey cap9.ProcedureKey, entryAddr cap9.Address, list ...caps.Capability) (err error) {
	deployed, err := k.Deployed()
	if err != nil {
		return err
	}
	if deployed {
		return ErrDeployed
	}

	checkpoint := k.host.Checkpoint()
	defer func() {
		if err != nil {
			k.host.RevertTo(checkpoint)
		}
	}()

	if err := k.table.SetKernelAddress(k.host.Address()); err != nil {
		return err
	}
	if err := k.table.Insert(entryKey, entryAddr, list); err != nil {
		return errors.WithMessage(err, "register entry procedure")
	}
	if err := k.table.SetEntry(entryKey); err != nil {
		return err
	}
	logger.Info("kernel deployed", "address", k.host.Address(), "entry", entryKey, "entry-address", entryAddr)
	k.reportLength()
	return nil
}

// reportLength publishes the procedure list length once changes are kept.
func (k *Kernel) reportLength() {
	if n, err := k.table.Len(); err == nil {
		metricListLength().Set(int64(n))
	}
}

// Deployed reports whether storage holds a kernel.
func (k *Kernel) Deployed() (bool, error) {
	addr, err := k.table.KernelAddress()
	if err != nil {
		return false, err
	}
	if !addr.IsZero() {
		return true, nil
	}
	n, err := k.table.Len()
	return n > 0, err
}

// Table returns the procedure table.
func (k *Kernel) Table() *proctable.Table {
	return k.table
}

// Execute runs the entry procedure on an external invocation.
func (k *Kernel) Execute(caller cap9.Address, input []byte) (out []byte, err error) {
	defer func() {
		metricExecutions().AddWithLabel(1, map[string]string{"result": ResultCode(err).String()})
	}()

	if len(k.frames) > 0 {
		return nil, ErrBusy
	}
	entry, err := k.table.Entry()
	if err != nil {
		return nil, err
	}
	if entry.IsZero() {
		return nil, ErrNoEntry
	}
	addr, ok, err := k.table.Address(entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithMessage(ErrNoEntry, entry.String())
	}

	logger.Debug("execute", "caller", caller, "entry", entry, "input", len(input))

	checkpoint := k.host.Checkpoint()
	out, err = k.invoke(entry, addr, input)
	if err != nil {
		k.host.RevertTo(checkpoint)
		logger.Debug("execution failed", "caller", caller, "err", err)
		return nil, err
	}
	k.reportLength()
	return out, nil
}

// invoke runs the procedure key in a new frame. The current procedure
// marker holds key for the duration of the call.
func (k *Kernel) invoke(key cap9.ProcedureKey, addr cap9.Address, input []byte) ([]byte, error) {
	prev, err := k.table.Current()
	if err != nil {
		return nil, err
	}
	if err := k.table.SetCurrent(key); err != nil {
		return nil, err
	}

	e := &env{kernel: k, key: key}
	k.frames = append(k.frames, e)
	metricCallDepth().Observe(int64(len(k.frames)))
	metricFrames().Add(1)

	out, err := k.host.Invoke(addr, e, input)

	k.frames = k.frames[:len(k.frames)-1]
	e.done = true
	metricFrames().Add(-1)

	if serr := k.table.SetCurrent(prev); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return nil, &CallError{Target: key.String(), Err: err}
	}
	return out, nil
}

// Depth returns the number of active procedure frames.
func (k *Kernel) Depth() int {
	return len(k.frames)
}

// ProcedureByKey returns the address of key, the zero address if absent.
func (k *Kernel) ProcedureByKey(key cap9.ProcedureKey) (cap9.Address, error) {
	addr, _, err := k.table.Address(key)
	return addr, err
}

// CheckContract reports whether addr can be registered as procedure code.
func (k *Kernel) CheckContract(addr cap9.Address) (bool, error) {
	if addr.IsZero() {
		return false, nil
	}
	return k.host.HasCode(addr)
}
