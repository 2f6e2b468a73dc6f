package port

// NetworkState mirrors the observable network-reachability states a
// Per-Inbox Sync Coordinator reacts to.
type NetworkState int

const (
	NetworkDisconnected NetworkState = iota + 1
	NetworkConnecting
	NetworkConnectedWifi
	NetworkConnectedCellular
	NetworkConnectedOther
)

func (s NetworkState) IsConnected() bool {
	switch s {
	case NetworkConnectedWifi, NetworkConnectedCellular, NetworkConnectedOther:
		return true
	default:
		return false
	}
}

// NetworkMonitor is an observable stream of network reachability
// transitions. Coordinator.OnNetworkChange maps a state to Pause or
// Resume; no component in this module subscribes to NetworkMonitor or
// forwards its states to coordinators.
type NetworkMonitor interface {
	Subscribe() <-chan NetworkState
}

// AppLifecycleEvent mirrors the observable app-foreground transitions.
// No component in this module subscribes to them; the Scheduled
// Explosion Manager reschedules alarms only when RescheduleAll is
// called.
type AppLifecycleEvent int

const (
	AppDidBecomeActive AppLifecycleEvent = iota + 1
)

// AppLifecycle is an observable stream of app foreground/background
// transitions.
type AppLifecycle interface {
	Subscribe() <-chan AppLifecycleEvent
}
