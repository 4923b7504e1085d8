package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/slukyano/ignite"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	EvictEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	evictCtr    atomic.Uint64
}

var _ ignite.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ConflictDetected(key string, otherTx, commitOrder uint64) {
	if h.l == nil {
		return
	}
	h.l.Info("ignite.conflict_detected",
		"key", h.redact(key),
		"other_tx", otherTx,
		"commit_order", commitOrder)
}

func (h *Hooks) TxForceAborted(tx uint64, trackedKeys int) {
	if h.l == nil {
		return
	}
	h.l.Warn("ignite.tx_force_aborted",
		"tx", tx,
		"tracked_keys", trackedKeys)
}

func (h *Hooks) EntryEvicted(key, reason string) {
	if h.l == nil || !sample(h.opts.EvictEvery, &h.evictCtr) {
		return
	}
	h.l.Debug("ignite.entry_evicted",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) VersionsPruned(horizon uint64, removed int) {
	if h.l == nil || removed == 0 {
		return
	}
	h.l.Debug("ignite.versions_pruned",
		"horizon", horizon,
		"removed", removed)
}

func (h *Hooks) NearSelfHeal(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("ignite.near_self_heal",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) NearSetRejected(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("ignite.near_set_rejected",
		"key", h.redact(key))
}

func (h *Hooks) RevError(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("ignite.rev_error",
		"key", h.redact(key),
		"err", err)
}
