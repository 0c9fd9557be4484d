package headless

import (
	"fmt"
	"strings"
)

// Proxy is one upstream HTTP proxy.
type Proxy struct {
	Server   string
	Username string
	Password string
}

// ParseProxy accepts "host:port" or "host:port:user:pass".
func ParseProxy(raw string) (Proxy, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	for _, p := range parts {
		if p == "" {
			return Proxy{}, fmt.Errorf("invalid proxy %q", raw)
		}
	}
	switch len(parts) {
	case 2:
		return Proxy{Server: "http://" + parts[0] + ":" + parts[1]}, nil
	case 4:
		return Proxy{
			Server:   "http://" + parts[0] + ":" + parts[1],
			Username: parts[2],
			Password: parts[3],
		}, nil
	default:
		return Proxy{}, fmt.Errorf("invalid proxy %q: want host:port or host:port:user:pass", raw)
	}
}

// ParseProxies parses every entry of raw, skipping blanks.
func ParseProxies(raw []string) ([]Proxy, error) {
	var out []Proxy
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		p, err := ParseProxy(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (p Proxy) hasAuth() bool {
	return p.Username != ""
}
