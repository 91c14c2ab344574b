package address

import "testing"

func TestChecksumKnownVectors(t *testing.T) {
	// EIP-55 reference vectors.
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		got, err := Checksum(want)
		if err != nil {
			t.Fatalf("Checksum(%s) failed: %v", want, err)
		}
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
		if !ValidChecksum(want) {
			t.Fatalf("expected %s to carry a valid checksum", want)
		}
	}
}

func TestValidChecksumRejectsFlippedCase(t *testing.T) {
	if ValidChecksum("0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed") {
		t.Fatal("expected flipped case to fail checksum")
	}
}

func TestEqualEIP155IgnoresCase(t *testing.T) {
	a := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	b := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	if !Equal("eip155:1", a, b) {
		t.Fatal("expected case-insensitive match on eip155")
	}
	if !Equal("", a, b) {
		t.Fatal("expected inferred eip155 match without chain")
	}
	if Equal("eip155:1", a, "0x0000000000000000000000000000000000000001") {
		t.Fatal("expected different addresses to mismatch")
	}
}

func TestEqualMalformedNeverMatches(t *testing.T) {
	if Equal("eip155:1", "0xabc", "0xabc") {
		t.Fatal("expected malformed eip155 address to mismatch")
	}
	if Equal("", "", "") {
		t.Fatal("expected empty addresses to mismatch")
	}
}

func TestEqualSolanaIsCaseSensitive(t *testing.T) {
	const addr = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	if !Equal("solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp", addr, " "+addr) {
		t.Fatal("expected identical solana addresses to match")
	}
	if Equal("solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp", addr, "4nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T") {
		t.Fatal("expected case-changed solana address to mismatch")
	}
}

func TestEqualUnknownNamespaceExact(t *testing.T) {
	if !Equal("cosmos:cosmoshub-4", "cosmos1abc", "cosmos1abc") {
		t.Fatal("expected exact match")
	}
	if Equal("cosmos:cosmoshub-4", "cosmos1abc", "COSMOS1ABC") {
		t.Fatal("expected exact comparison for unknown namespace")
	}
}
