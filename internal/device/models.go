package device

import (
	"net"
	"strconv"
)

// DefaultPort is the HTTP port the device listens on
const DefaultPort = 80

// DefaultMarker is the identification string the device firmware serves
const DefaultMarker = "ESP32-SYSMON"

// Address is a verified (or candidate) locator for the device
type Address struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port,omitempty"`
}

// NewAddress creates an address, defaulting the port when it is unset
func NewAddress(host string, port int) Address {
	if port <= 0 {
		port = DefaultPort
	}
	return Address{Host: host, Port: port}
}

// IsZero reports whether the address has no host
func (a Address) IsZero() bool {
	return a.Host == ""
}

// HostPort returns host:port, omitting the default port
func (a Address) HostPort() string {
	if a.Port <= 0 || a.Port == DefaultPort {
		return a.Host
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// URL builds the http URL for path on the device
func (a Address) URL(path string) string {
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return "http://" + a.HostPort() + path
}

func (a Address) String() string {
	return a.HostPort()
}
