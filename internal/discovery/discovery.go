// Package discovery advertises scribble servers on the local network over
// mDNS and finds them again.
package discovery

import (
	"context"
	"fmt"
	stdlog "log"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

// ServiceType is the DNS-SD service advertised by `scribble serve`.
const ServiceType = "_scribble._tcp"

const domain = "local"

// Server is one advertised scribble instance.
type Server struct {
	Instance string   `json:"instance"`
	Host     string   `json:"host"`
	Addr     string   `json:"addr"`
	Port     int      `json:"port"`
	Info     []string `json:"info,omitempty"`
}

// URL returns the websocket endpoint of the server.
func (s Server) URL() string {
	host := s.Addr
	if host == "" {
		host = strings.TrimSuffix(s.Host, ".")
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(s.Port)) + "/ws"
}

// Advertiser keeps an mDNS responder running until Shutdown.
type Advertiser struct {
	server *mdns.Server
	log    zerolog.Logger
}

// Advertise registers instance on port. info is published as TXT records.
func Advertise(instance string, port int, info []string, log zerolog.Logger) (*Advertiser, error) {
	log = log.With().Str("component", "discovery").Logger()

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{
		Zone:   service,
		Logger: stdlog.New(log, "", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}

	log.Info().Str("instance", instance).Int("port", port).Msg("advertising")
	return &Advertiser{server: server, log: log}, nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	if err := a.server.Shutdown(); err != nil {
		return fmt.Errorf("stop mdns server: %w", err)
	}
	a.log.Debug().Msg("advertising stopped")
	return nil
}

// Browse queries the local network for timeout, or until ctx's deadline if
// that is sooner, and returns the servers that answered ordered by instance.
func Browse(ctx context.Context, timeout time.Duration) ([]Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []Server, 1)
	go func() {
		var found []*mdns.ServiceEntry
		for e := range entries {
			found = append(found, e)
		}
		collected <- fromEntries(found)
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Domain = domain
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	servers := <-collected

	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ServiceType, err)
	}
	return servers, nil
}

// fromEntries converts responses to servers, dropping entries for other
// services and duplicates of the same instance.
func fromEntries(entries []*mdns.ServiceEntry) []Server {
	seen := make(map[string]struct{}, len(entries))
	servers := make([]Server, 0, len(entries))

	for _, e := range entries {
		if e == nil || e.Port == 0 {
			continue
		}
		instance, ok := instanceName(e.Name)
		if !ok {
			continue
		}
		if _, dup := seen[e.Name]; dup {
			continue
		}
		seen[e.Name] = struct{}{}

		s := Server{
			Instance: instance,
			Host:     e.Host,
			Port:     e.Port,
			Info:     e.InfoFields,
		}
		if e.AddrV4 != nil {
			s.Addr = e.AddrV4.String()
		}
		servers = append(servers, s)
	}

	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Instance < servers[j].Instance
	})
	return servers
}

// instanceName extracts "laptop" from "laptop._scribble._tcp.local.".
func instanceName(name string) (string, bool) {
	suffix := "." + ServiceType + "." + domain + "."
	instance, ok := strings.CutSuffix(name, suffix)
	if !ok || instance == "" {
		return "", false
	}
	// DNS-SD escapes spaces and dots inside the instance label.
	return strings.ReplaceAll(instance, `\`, ""), true
}
