package voucher

import (
	"fmt"
	"strings"
)

// Eip155Namespace is the only CAIP-2 namespace the deferred scheme supports;
// it only ever settles against EVM chains.
const Eip155Namespace = "eip155"

// legacyNetworkChainIDs maps the bare v1-format network names still accepted
// alongside CAIP-2 tags to their chain id, mirroring NetworkConfigs' legacy
// aliases ("base", "base-sepolia") for the same two chains.
var legacyNetworkChainIDs = map[string]int64{
	"base":         8453,
	"base-sepolia": 84532,
}

// ChainIDForNetwork resolves a network tag to its chain id. It accepts both
// the CAIP-2 form ("eip155:84532") and the legacy bare network name
// ("base-sepolia"), the way Network.Parse splits namespace:reference.
func ChainIDForNetwork(network string) (*BigInt, error) {
	if chainID, ok := legacyNetworkChainIDs[network]; ok {
		return NewBigInt(chainID), nil
	}
	parts := strings.SplitN(network, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid network format: %q", network)
	}
	if parts[0] != Eip155Namespace {
		return nil, fmt.Errorf("unsupported network namespace %q (only %q is supported)", parts[0], Eip155Namespace)
	}
	chainID, err := ParseBigInt(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid chain reference in network %q: %w", network, err)
	}
	return chainID, nil
}
