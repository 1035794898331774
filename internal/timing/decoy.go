package timing

import (
	"github.com/google/uuid"
)

// DecoyURL returns a fresh address that no browser profile can have visited.
// The host lives under the reserved .invalid TLD and embeds a random UUID, so
// every call yields a distinct, unresolvable address.
func DecoyURL() string {
	return "https://decoy-" + uuid.NewString() + ".invalid/"
}

// DecoyPair returns two distinct decoy addresses for ping-pong control runs.
func DecoyPair() (string, string) {
	return DecoyURL(), DecoyURL()
}
