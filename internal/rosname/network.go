package rosname

import (
	"net"
	"os"
)

// AdvertiseHost picks a default host to advertise in the master's own URI
// when the operator did not pass one explicitly. Unlike a node's own slave
// API address resolution, the master never consults ROS_HOSTNAME or
// ROS_IP: spec.md is explicit that the master does not read ROS
// environment variables itself.
func AdvertiseHost() (host string, loopbackOnly bool) {
	if osHostname, err := os.Hostname(); err == nil && osHostname != "localhost" && osHostname != "" {
		return osHostname, false
	}
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				return ipnet.IP.String(), false
			}
		}
	}
	return "127.0.0.1", true
}
