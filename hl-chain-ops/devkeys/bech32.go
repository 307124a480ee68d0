package devkeys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/ethereum/go-ethereum/common"
)

// InjectivePrefix is the bech32 human-readable part of injective account and contract addresses.
const InjectivePrefix = "inj"

// ToBech32 encodes raw address bytes with the given human-readable prefix.
func ToBech32(hrp string, data []byte) (string, error) {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	return bech32.Encode(hrp, conv)
}

// FromBech32 decodes a bech32 address into its prefix and raw bytes.
func FromBech32(addr string) (string, []byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid bech32 address %q: %w", addr, err)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("failed to convert address bits of %q: %w", addr, err)
	}
	return hrp, conv, nil
}

// AccountAddress is the injective account address of an ethereum-style key address.
func AccountAddress(addr common.Address) string {
	out, err := ToBech32(InjectivePrefix, addr.Bytes())
	if err != nil {
		// 20 bytes always convert
		panic(err)
	}
	return out
}

// PaddedAddress decodes a bech32 address and zero-left-pads it to 32 bytes,
// the fixed-length form hyperlane uses for addresses of any chain.
func PaddedAddress(addr string) ([32]byte, error) {
	var out [32]byte
	_, raw, err := FromBech32(addr)
	if err != nil {
		return out, err
	}
	if len(raw) > len(out) {
		return out, fmt.Errorf("address %q is %d bytes, longer than 32", addr, len(raw))
	}
	copy(out[:], common.LeftPadBytes(raw, len(out)))
	return out, nil
}
