package tor

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the number of base32 characters in a v3 address.
	OnionV3Length = 56

	// OnionV3Version is the trailing version byte of a v3 address.
	OnionV3Version = 0x03

	// OnionSuffix is the special-use top-level domain of onion services.
	OnionSuffix = ".onion"
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is prepended to the key when computing the v3 checksum.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host is in the .onion domain.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(host, ".")), OnionSuffix)
}

// ServiceAddress strips subdomains, returning the "<key>.onion" part of host.
// "www.<key>.onion" and "<key>.onion" yield the same service address.
func ServiceAddress(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// ValidateOnionHost checks the service address of host.
// It returns ErrV2AddressDeprecated for v2 addresses and
// ErrInvalidOnionAddress for anything else that is not a valid v3 address.
func ValidateOnionHost(host string) error {
	addr := ServiceAddress(host)
	if IsValidV3Address(addr) {
		return nil
	}
	if IsV2Address(addr) {
		return ErrV2AddressDeprecated
	}
	return ErrInvalidOnionAddress
}

// IsValidV3Address checks format, version byte and checksum of a v3 address.
// The checksum is the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	encoded := strings.ToUpper(strings.TrimSuffix(address, OnionSuffix))
	decoded, err := base32.StdEncoding.DecodeString(encoded)
	if err != nil || len(decoded) != 35 {
		return false
	}

	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != OnionV3Version {
		return false
	}
	want := computeV3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// IsV2Address reports whether address has the retired 16-character format.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// ComputeV3AddressFromPublicKey returns the v3 address of an ed25519 public key.
func ComputeV3AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}

	data := make([]byte, 35)
	copy(data[:32], pubkey)
	copy(data[32:34], computeV3Checksum(pubkey, OnionV3Version))
	data[34] = OnionV3Version

	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}
