package handlers

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServerInfo reports the listen port and every reachable LAN address so
// clients on the same network can find the server.
type ServerInfo struct {
	Port           string   `json:"port"`
	Addresses      []string `json:"addresses"`
	ConnectionURLs []string `json:"connectionUrls"`
}

// NewServerInfoHandler returns the GET /api/server-info handler.
func NewServerInfoHandler(port string) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := ServerInfo{
			Port:           port,
			Addresses:      []string{},
			ConnectionURLs: []string{},
		}
		for _, addr := range nonInternalIPv4Addresses() {
			info.Addresses = append(info.Addresses, addr)
			info.ConnectionURLs = append(info.ConnectionURLs, fmt.Sprintf("http://%s:%s", addr, port))
		}
		c.JSON(http.StatusOK, info)
	}
}

// nonInternalIPv4Addresses lists the IPv4 addresses of all up, non-loopback
// interfaces.
func nonInternalIPv4Addresses() []string {
	var result []string

	ifaces, err := net.Interfaces()
	if err != nil {
		return result
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ipv4 := ip.To4(); ipv4 != nil {
				result = append(result, ipv4.String())
			}
		}
	}
	return result
}
