// Package activation computes per-node activation state. A node with no
// activation-relevant incoming connections is a head node and is judged by
// its kind's head predicate over its own data alone; every other node is
// judged by its downstream predicate over its own data plus the active
// outputs of its direct upstream neighbors, defaulting to logical AND across
// connected required inputs.
//
// Results are memoized per node, keyed by the relevant connection signature,
// the upstream outputs signature, and the own-data signature. The only
// sanctioned shortcut past the cache is the quick-check bypass: when the
// cached state says active but a fresh cheap predicate evaluation disagrees,
// the cache is ignored and the node recomputed immediately, which prevents
// one-tick stale-active flicker on rapid deactivation.
//
// The calculator never propagates predicate failures to its caller: a
// predicate error or panic resolves activation to false and is forwarded to
// the error supervisor through the OnError hook.
package activation
