// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/slukyano/ignite"
//	"github.com/slukyano/ignite/hooks/async"
//	"github.com/slukyano/ignite/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	    EvictEvery:    1,  // log every eviction
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	st, _ := ignite.New(ignite.Options{
//	    Name:  "app:prod:user",
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/slukyano/ignite"
)

type Hooks struct {
	inner ignite.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ ignite.Hooks = (*Hooks)(nil)

func New(inner ignite.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) ConflictDetected(k string, otherTx, order uint64) {
	h.try(func() { h.inner.ConflictDetected(k, otherTx, order) })
}
func (h *Hooks) TxForceAborted(tx uint64, keys int) { h.try(func() { h.inner.TxForceAborted(tx, keys) }) }
func (h *Hooks) EntryEvicted(k, r string)           { h.try(func() { h.inner.EntryEvicted(k, r) }) }
func (h *Hooks) VersionsPruned(horizon uint64, removed int) {
	h.try(func() { h.inner.VersionsPruned(horizon, removed) })
}
func (h *Hooks) NearSelfHeal(k, r string)         { h.try(func() { h.inner.NearSelfHeal(k, r) }) }
func (h *Hooks) NearSetRejected(k string)         { h.try(func() { h.inner.NearSetRejected(k) }) }
func (h *Hooks) RevError(k string, err error)     { h.try(func() { h.inner.RevError(k, err) }) }
