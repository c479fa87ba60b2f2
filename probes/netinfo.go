package probes

import (
	"fmt"

	"github.com/jackpal/gateway"
)

// DiscoverGateway returns the default gateway address, so it can be pinged
// alongside the configured hosts.
func DiscoverGateway() (string, error) {
	gw, err := gateway.DiscoverGateway()
	if err != nil {
		return "", fmt.Errorf("could not discover local gateway address: %w", err)
	}
	return gw.String(), nil
}
