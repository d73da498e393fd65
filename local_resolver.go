package cfddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns the first IPv4 address reported by the given interfaces.
// If no interfaces are provided then all interfaces will be used.
// Loopback addresses are always skipped.
//
// This is only useful when the host holds its public address directly,
// e.g. on a PPPoE link or a VPS without NAT.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface}
}

type interfaceResolver struct {
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	addrs, errs := r.addrs()
	for _, a := range addrs {
		ip, err := netip.ParsePrefix(a.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing local ip %s: %w", a.String(), err))
			continue
		}
		addr := ip.Addr().Unmap()
		if addr.IsLoopback() || !addr.Is4() {
			continue
		}
		return addr, nil
	}
	if len(errs) > 0 {
		return netip.Addr{}, fmt.Errorf("%w: %w", ErrNoAddress, errors.Join(errs...))
	}
	return netip.Addr{}, fmt.Errorf("%w: no interface has a non-loopback IPv4 address", ErrNoAddress)
}

func (r interfaceResolver) addrs() (addrs []net.Addr, errs []error) {
	if len(r.ifaces) == 0 {
		// addr: ip+net:192.168.86.253/24
		// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
		a, err := net.InterfaceAddrs()
		if err != nil {
			return nil, []error{fmt.Errorf("error getting interface addresses: %w", err)}
		}
		return a, nil
	}
	for _, name := range r.ifaces {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", name, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", name, err))
			continue
		}
		addrs = append(addrs, a...)
	}
	return addrs, errs
}
