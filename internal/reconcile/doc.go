// Package reconcile keeps the device's attendance session consistent with
// the remote store and follows other employees' status through the realtime
// bus.
//
// Local mutations are written in submission order by a single drain loop.
// Remote changes replace cached roster entries outright; the device's own
// session is only replaced by a remote copy with a higher revision. The
// realtime subscription is re-established with exponential backoff and, once
// the attempt budget is spent, sync stays unavailable until Refresh.
package reconcile
