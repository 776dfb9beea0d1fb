// Package discovery supplies growl.DiscoveryBridge implementations: a static
// list from config, a reachability filter and a TTL-cached wrapper that a
// scheduler refreshes in the background.
package discovery
