// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package discovery advertises and browses the node's LAN presence over
// multicast DNS, service type _agentmail._tcp.local.
package discovery

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/agentmail-dev/agentmail/crypto"
	"github.com/agentmail-dev/agentmail/internal/logger"
	"github.com/agentmail-dev/agentmail/internal/metrics"
	"github.com/agentmail-dev/agentmail/mailbox"
)

const (
	// ServiceType is the mDNS service type all agentmail nodes advertise
	// under and browse for.
	ServiceType = "_agentmail._tcp"
	// ProtocolVersion is published in the "v" TXT record.
	ProtocolVersion = "1"
	browseInterval  = 10 * time.Second
)

// Discovery runs the mDNS advertise server and a periodic browse loop that
// feeds discovered peers into a mailbox.Store via UpsertPeer.
type Discovery struct {
	store mailbox.Store
	log   logger.Logger

	mu      sync.Mutex
	running bool
	server  *mdns.Server
	cancel  context.CancelFunc
	done    chan struct{}

	// lastSeen holds the fingerprints observed on the previous browse
	// round, read and written only from the browseLoop goroutine. A
	// fingerprint present here but absent from the current round's poll
	// has dropped off the network; its peer record is kept but its
	// endpoint is cleared rather than the record being purged.
	lastSeen map[string]bool
}

// New creates a Discovery bound to the given mailbox store.
func New(store mailbox.Store, log logger.Logger) *Discovery {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Discovery{store: store, log: log}
}

// Start begins advertising identity under name on port and begins browsing
// for peers. Calling Start while already running is a no-op.
func (d *Discovery) Start(ctx context.Context, identity *crypto.Identity, name string, port int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	txt := []string{
		"fp=" + identity.Fingerprint(),
		"sign_pk=" + base64.RawURLEncoding.EncodeToString(identity.SignPub),
		"enc_pk=" + base64.RawURLEncoding.EncodeToString(identity.EncPub.Bytes()),
		"v=" + ProtocolVersion,
	}

	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("discovery: resolve local ips: %w", err)
	}

	service, err := mdns.NewMDNSService(name, ServiceType, "", "", port, ips, txt)
	if err != nil {
		return fmt.Errorf("discovery: build service record: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("discovery: start advertiser: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.server = server
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.browseLoop(loopCtx)

	d.log.Info("discovery started", logger.Field{Key: "name", Value: name}, logger.Field{Key: "fp", Value: identity.Fingerprint()})
	return nil
}

// Stop halts browsing and releases the multicast registration. Idempotent.
func (d *Discovery) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.cancel()
	<-d.done
	err := d.server.Shutdown()
	d.running = false
	d.server = nil
	return err
}

func (d *Discovery) browseLoop(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(browseInterval)
	defer ticker.Stop()

	d.browseOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.browseOnce(ctx)
		}
	}
}

func (d *Discovery) browseOnce(ctx context.Context) {
	entries := make(chan *mdns.ServiceEntry, 16)
	seen := make(map[string]bool)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if fp := d.handleEntry(ctx, entry); fp != "" {
				seen[fp] = true
			}
		}
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service: ServiceType,
		Domain:  "local",
		Timeout: 3 * time.Second,
		Entries: entries,
	})
	close(entries)
	<-done

	if err != nil {
		d.log.Warn("discovery browse failed", logger.Field{Key: "error", Value: err.Error()})
		metrics.DiscoveryEvents.WithLabelValues("error").Inc()
	}

	for fp := range d.lastSeen {
		if seen[fp] {
			continue
		}
		if err := d.store.ClearPeerEndpoint(ctx, fp); err != nil {
			d.log.Warn("discovery: clear endpoint failed", logger.Field{Key: "fp", Value: fp}, logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		metrics.DiscoveryEvents.WithLabelValues("remove").Inc()
	}
	d.lastSeen = seen

	metrics.DiscoveredPeers.Set(float64(len(seen)))
}

// handleEntry parses and upserts a single mDNS service entry, returning its
// fingerprint on success (even on a rejected upsert, since the peer was
// still observed on the network this round) or "" if the entry could not
// be parsed at all.
func (d *Discovery) handleEntry(ctx context.Context, entry *mdns.ServiceEntry) string {
	fields := parseTXT(entry.InfoFields)
	fp, signPKb64, encPKb64 := fields["fp"], fields["sign_pk"], fields["enc_pk"]
	if fp == "" || signPKb64 == "" || encPKb64 == "" {
		d.log.Warn("discovery: dropping malformed TXT record", logger.Field{Key: "name", Value: entry.Name})
		return ""
	}

	signPK, err1 := base64.RawURLEncoding.DecodeString(signPKb64)
	encPK, err2 := base64.RawURLEncoding.DecodeString(encPKb64)
	if err1 != nil || err2 != nil {
		d.log.Warn("discovery: dropping TXT record with bad base64", logger.Field{Key: "name", Value: entry.Name})
		return ""
	}

	endpoint := ""
	if entry.AddrV4 != nil {
		endpoint = fmt.Sprintf("%s:%d", entry.AddrV4.String(), entry.Port)
	} else if entry.AddrV6 != nil {
		endpoint = fmt.Sprintf("[%s]:%d", entry.AddrV6.String(), entry.Port)
	}

	peer := mailbox.PeerInfo{
		FP:       fp,
		Name:     serviceInstanceName(entry.Name),
		SignPK:   signPK,
		EncPK:    encPK,
		Endpoint: endpoint,
		LastSeen: time.Now(),
		Source:   mailbox.SourceLAN,
	}

	if err := d.store.UpsertPeer(ctx, peer); err != nil {
		d.log.Warn("discovery: peer upsert rejected", logger.Field{Key: "fp", Value: fp}, logger.Field{Key: "error", Value: err.Error()})
		metrics.DiscoveryEvents.WithLabelValues("conflict").Inc()
		return fp
	}
	metrics.DiscoveryEvents.WithLabelValues("upsert").Inc()
	return fp
}

// parseTXT splits "key=value" TXT strings into a map.
func parseTXT(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		for i := 0; i < len(f); i++ {
			if f[i] == '=' {
				out[f[:i]] = f[i+1:]
				break
			}
		}
	}
	return out
}

// serviceInstanceName strips the trailing "._agentmail._tcp.local." suffix
// from an mDNS service entry name, leaving the advertised node name.
func serviceInstanceName(full string) string {
	suffix := "." + ServiceType + ".local."
	if len(full) > len(suffix) && full[len(full)-len(suffix):] == suffix {
		return full[:len(full)-len(suffix)]
	}
	return full
}

func localIPs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ipNet.IP.To4() != nil {
			ips = append(ips, ipNet.IP)
		}
	}
	if len(ips) == 0 {
		ips = append(ips, net.IPv4(127, 0, 0, 1))
	}
	return ips, nil
}
