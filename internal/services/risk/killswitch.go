package risk

import "sync/atomic"

// KillSwitch is a one-way latch. Once tripped it stays tripped for the
// lifetime of the process; there is deliberately no Reset.
type KillSwitch struct {
	killed atomic.Bool
}

// Trip moves the switch to KILLED. It reports true only for the call that
// performed the transition.
func (k *KillSwitch) Trip() bool {
	return k.killed.CompareAndSwap(false, true)
}

func (k *KillSwitch) Killed() bool {
	return k.killed.Load()
}

func (k *KillSwitch) State() string {
	if k.Killed() {
		return "KILLED"
	}
	return "ACTIVE"
}
