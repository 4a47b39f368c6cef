package domain

// Anchor is an issuer of a tokenized asset on the venue. Each anchor's
// issuance of an asset is tracked as a separate balance with its own native
// order book.
type Anchor struct {
	Address string
	Alias   string
}

// Name returns the anchor's display identity: its alias when one is known,
// otherwise a shortened form of the issuing address.
func (a *Anchor) Name() string {
	if a.Alias != "" {
		return a.Alias
	}
	return shortAddress(a.Address)
}

// shortAddress abbreviates a venue address for display and logging.
func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:5] + "..." + addr[len(addr)-5:]
}
