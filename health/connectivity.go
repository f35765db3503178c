package health

import "net"

// Connectivity reports the platform's view of the network. known is false
// when the platform cannot tell.
type Connectivity interface {
	Online() (online, known bool)
}

// ConnectivityFunc adapts an ordinary function to a Connectivity.
type ConnectivityFunc func() (online, known bool)

// Online calls f().
func (f ConnectivityFunc) Online() (online, known bool) {
	return f()
}

// InterfaceConnectivity derives connectivity from the host's network
// interfaces: the host is online when any non-loopback interface is up and
// has an address.
type InterfaceConnectivity struct {
	// Interfaces lists the host interfaces.
	// Default: net.Interfaces
	Interfaces func() ([]net.Interface, error)

	// Addrs lists an interface's addresses.
	// Default: (*net.Interface).Addrs
	Addrs func(net.Interface) ([]net.Addr, error)
}

// Online implements Connectivity.
func (c InterfaceConnectivity) Online() (online, known bool) {
	list := c.Interfaces
	if list == nil {
		list = net.Interfaces
	}
	addrs := c.Addrs
	if addrs == nil {
		addrs = func(ifi net.Interface) ([]net.Addr, error) { return ifi.Addrs() }
	}

	ifaces, err := list()
	if err != nil {
		return false, false
	}

	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		a, err := addrs(ifi)
		if err == nil && len(a) > 0 {
			return true, true
		}
	}
	return false, true
}
