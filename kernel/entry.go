package kernel

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/snailos/snail/capability"
)

// Banner is the first line the entry point writes.
func Banner(mode capability.Mode) string {
	return fmt.Sprintf("_@/\" OS %s-%s, booting…", Version, mode)
}

// Entry is the kernel's boot entry point. It returns once init exits.
func (k *Kernel) Entry(ctx context.Context, b capability.Bundle) error {
	t := b.Terminal()
	if err := t.Open(k.cfg.stdout, k.cfg.stdin); err != nil {
		return errors.Wrap(err, "open terminal")
	}
	defer t.Close()

	if err := b.Layout().Fit(); err != nil {
		return errors.Wrap(err, "fit terminal")
	}
	if err := t.Writeln(Banner(b.Mode())); err != nil {
		return err
	}

	pid, err := k.Exec(ctx, b, k.cfg.init, k.cfg.args...)
	if err != nil {
		t.Writeln(err.Error())
		return err
	}

	code, err := k.Wait(ctx, pid)
	if err != nil {
		t.Writeln(err.Error())
		return err
	}
	return t.Writeln(fmt.Sprintf("\r\nEXIT %d", code))
}
