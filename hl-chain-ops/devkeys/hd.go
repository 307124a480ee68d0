package devkeys

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/base/go-bip39"
	hdwallet "github.com/ethereum-optimism/go-ethereum-hdwallet"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TestMnemonic is the well-known development mnemonic, for tests only.
const TestMnemonic = "test test test test test test test test test test test junk"

// HDPath is the derivation path of the given account index.
// Injective keys use the ethereum coin type, so its keyring and ours derive the same key.
func HDPath(account uint32) string {
	return fmt.Sprintf("m/44'/60'/0'/0/%d", account)
}

type MnemonicKeys struct {
	w *hdwallet.Wallet
}

func NewMnemonicKeys(mnemonic string) (*MnemonicKeys, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return &MnemonicKeys{w: w}, nil
}

func (d *MnemonicKeys) Secret(account uint32) (*ecdsa.PrivateKey, error) {
	acc := accounts.Account{URL: accounts.URL{
		Path: HDPath(account),
	}}
	priv, err := d.w.PrivateKey(acc)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key of path %s: %w", acc.URL.Path, err)
	}
	return priv, nil
}

func (d *MnemonicKeys) Address(account uint32) (common.Address, error) {
	secret, err := d.Secret(account)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(secret.PublicKey), nil
}
