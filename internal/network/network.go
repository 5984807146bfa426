// Package network identifies the station by its interface hardware address
// and waits for that interface to come up at boot.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tempstation/internal/utils"
)

// Iface is the subset of interface state the station cares about.
type Iface struct {
	Name  string
	MAC   net.HardwareAddr
	Up    bool
	Addrs []net.Addr
}

// Lookup returns the current state of the named interface.
type Lookup func(name string) (Iface, error)

// SystemLookup reads interface state from the host.
func SystemLookup(name string) (Iface, error) {
	ni, err := net.InterfaceByName(name)
	if err != nil {
		return Iface{}, err
	}
	addrs, err := ni.Addrs()
	if err != nil {
		return Iface{}, fmt.Errorf("addresses of %s: %w", name, err)
	}
	return Iface{
		Name:  ni.Name,
		MAC:   ni.HardwareAddr,
		Up:    ni.Flags&net.FlagUp != 0,
		Addrs: addrs,
	}, nil
}

// HardwareID is the lowercase hex MAC of the interface without separators.
func HardwareID(lookup Lookup, name string) (string, error) {
	i, err := lookup(name)
	if err != nil {
		return "", fmt.Errorf("interface %s: %w", name, err)
	}
	if len(i.MAC) == 0 {
		return "", fmt.Errorf("interface %s has no hardware address", name)
	}
	return utils.BytesToHex(i.MAC), nil
}

var errNotReady = errors.New("interface not ready")

// Ready reports whether i is up with at least one usable address.
func Ready(i Iface) bool {
	if !i.Up {
		return false
	}
	for _, a := range i.Addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() {
			return true
		}
	}
	return false
}

// WaitReady polls the interface every period until it is Ready or ctx is
// done.
func WaitReady(ctx context.Context, lookup Lookup, name string, every time.Duration, logger *slog.Logger) error {
	start := time.Now()
	op := func() error {
		i, err := lookup(name)
		if err != nil {
			return err
		}
		if !Ready(i) {
			return errNotReady
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.Debug("waiting for network", "interface", name, "reason", err, "retry_in", next)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(every), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("wait for %s: %w", name, err)
	}
	logger.Info("network ready", "interface", name, "waited", time.Since(start).Round(time.Millisecond))
	return nil
}
