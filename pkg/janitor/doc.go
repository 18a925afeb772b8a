/*
Package janitor drives the kernel's periodic sweeps (spec §4.6): stale
claims, dead agents, and terminal-state retention. It holds no state of
its own beyond a ticker and an fsnotify watcher on the data directory —
every sweep reads its inputs fresh from the kernel, so a crash mid-sweep
loses nothing that the next tick won't recompute.

The fsnotify watch exists purely to react to the EMERGENCY_HALT marker
faster than the sweep interval would otherwise notice it: creating or
removing the marker logs immediately, while claim refusal itself is
still enforced by the kernel on every call, not by the janitor.
*/
package janitor
