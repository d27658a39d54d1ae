// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"context"

	"grimm.is/flytrap/internal/errors"
	"grimm.is/flytrap/internal/logging"
	"grimm.is/flytrap/internal/network"
	"grimm.is/flytrap/internal/syscmd"
)

// Manager executes planned rule records against the host.
type Manager struct {
	runner syscmd.Runner
	sys    network.SystemController
	logger *logging.Logger
}

// NewManager builds a Manager against the real host.
func NewManager(logger *logging.Logger) *Manager {
	return NewManagerWithDeps(syscmd.NewRunner(), network.DefaultSystemController, logger)
}

// NewManagerWithDeps builds a Manager with injected dependencies.
func NewManagerWithDeps(runner syscmd.Runner, sys network.SystemController, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.WithComponent("firewall")
	}
	return &Manager{runner: runner, sys: sys, logger: logger}
}

// CheckBinary verifies iptables is present before any rule is attempted.
func (m *Manager) CheckBinary() error {
	if _, err := m.runner.LookPath("iptables"); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "iptables binary not found")
	}
	return nil
}

// Apply installs the records in order. It is transactional in spirit: when
// any record fails, everything applied so far is reverted before the error
// is surfaced, so the host is never left half-modified.
func (m *Manager) Apply(ctx context.Context, records []RuleRecord) error {
	for i := range records {
		rec := &records[i]
		if rec.Applied {
			continue
		}
		if err := m.applyOne(ctx, rec); err != nil {
			m.logger.Error("Rule application failed, rolling back", "rule", rec.String(), "error", err)
			m.Revert(ctx, records[:i])
			return errors.Wrapf(err, errors.KindRuleApply, "failed to apply rule %q", rec.String())
		}
		rec.Applied = true
		m.logger.Debug("Rule applied", "rule", rec.String())
	}
	m.logger.Info("Firewall rules installed", "rules", len(records))
	return nil
}

// Revert removes applied records in reverse order. Safe on partially
// applied or already reverted sets: each record's Applied flag guarantees
// its reversal runs exactly once, and individual failures are logged, never
// propagated.
func (m *Manager) Revert(ctx context.Context, records []RuleRecord) {
	for i := len(records) - 1; i >= 0; i-- {
		rec := &records[i]
		if !rec.Applied {
			continue
		}
		rec.Applied = false
		if err := m.revertOne(ctx, rec); err != nil {
			m.logger.Warn("Failed to revert rule", "rule", rec.String(), "error", err)
		} else {
			m.logger.Debug("Rule reverted", "rule", rec.String())
		}
	}
}

func (m *Manager) applyOne(ctx context.Context, rec *RuleRecord) error {
	if rec.Table == TableSysctl {
		prior, err := m.sys.ReadSysctl(rec.Chain)
		if err != nil {
			return err
		}
		rec.prior = prior
		return m.sys.WriteSysctl(rec.Chain, rec.Spec[0])
	}

	out, err := m.runner.Run(ctx, iptablesCmd("-A", rec))
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "iptables: %s", string(out))
	}
	return nil
}

func (m *Manager) revertOne(ctx context.Context, rec *RuleRecord) error {
	if rec.Table == TableSysctl {
		if rec.prior == "" || rec.prior == rec.Spec[0] {
			return nil
		}
		return m.sys.WriteSysctl(rec.Chain, rec.prior)
	}

	out, err := m.runner.Run(ctx, iptablesCmd("-D", rec))
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "iptables: %s", string(out))
	}
	return nil
}

// Installed reports whether a record's rule is currently present, via
// iptables -C. Used by diagnostics only.
func (m *Manager) Installed(ctx context.Context, rec *RuleRecord) bool {
	if rec.Table == TableSysctl {
		v, err := m.sys.ReadSysctl(rec.Chain)
		return err == nil && v == rec.Spec[0]
	}
	_, err := m.runner.Run(ctx, iptablesCmd("-C", rec))
	return err == nil
}

func iptablesCmd(action string, rec *RuleRecord) syscmd.Command {
	args := []string{"-t", rec.Table, action, rec.Chain}
	args = append(args, rec.Spec...)
	return syscmd.Command{Bin: "iptables", Args: args}
}
