//go:build windows

package routemon

import (
	"log"
	"net"
)

// DumpRoutes logs a snapshot of every network interface's addresses and
// flags. It exists purely as a diagnostic aid for support requests: callers
// invoke it once when a route-change callback reports a failure, right
// before escalating to a full-tunnel block, so the resulting log capture
// shows what the routing table looked like at the time.
func DumpRoutes() {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Printf("routemon: failed to enumerate interfaces for diagnostics: %v", err)
		return
	}

	log.Print("routemon: beginning interface diagnostics dump")
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			log.Printf("routemon:   interface %q (index %d): failed to read addresses: %v", iface.Name, iface.Index, err)
			continue
		}

		log.Printf("routemon:   interface %q (index %d, mtu %d, flags %s)", iface.Name, iface.Index, iface.MTU, iface.Flags)
		for _, a := range addrs {
			log.Printf("routemon:     address %s", a.String())
		}
	}
	log.Print("routemon: finished interface diagnostics dump")
}
