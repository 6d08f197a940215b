package voucher

import "testing"

func TestChainIDForNetworkResolvesCAIP2(t *testing.T) {
	chainID, err := ChainIDForNetwork("eip155:84532")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chainID.Cmp(NewBigInt(84532)) != 0 {
		t.Fatalf("got %s, want 84532", chainID.String())
	}
}

func TestChainIDForNetworkResolvesLegacyNames(t *testing.T) {
	cases := map[string]int64{
		"base-sepolia": 84532,
		"base":         8453,
	}
	for network, want := range cases {
		chainID, err := ChainIDForNetwork(network)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", network, err)
		}
		if chainID.Cmp(NewBigInt(want)) != 0 {
			t.Fatalf("%s: got %s, want %d", network, chainID.String(), want)
		}
	}
}

func TestChainIDForNetworkRejectsUnknown(t *testing.T) {
	if _, err := ChainIDForNetwork("solana:mainnet"); err == nil {
		t.Fatal("expected error for unsupported namespace")
	}
	if _, err := ChainIDForNetwork("not-a-network"); err == nil {
		t.Fatal("expected error for malformed network tag")
	}
}
