package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoWallet is returned when a signing operation is requested without key material.
var ErrNoWallet = errors.New("no wallet configured")

// WalletConfig selects the key used by the signing view. PrivateKey wins over KeystorePath.
type WalletConfig struct {
	PrivateKey   string
	KeystorePath string
	Passphrase   string
}

// Signer is an explicitly connected wallet bound to one chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// Connect loads the wallet key and binds it to the node's chain id, checked against expectedChainID.
func Connect(ctx context.Context, client ChainIDReader, cfg WalletConfig, expectedChainID uint64) (*Signer, error) {
	key, err := loadKey(cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	chainID, err := ensureChainID(ctx, client, expectedChainID)
	if err != nil {
		return nil, err
	}
	return NewSigner(key, new(big.Int).SetUint64(chainID)), nil
}

// NewSigner wraps an already loaded key.
func NewSigner(key *ecdsa.PrivateKey, chainID *big.Int) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}
}

// Address returns the connected account.
func (s *Signer) Address() common.Address {
	return s.address
}

// TransactOpts builds fresh transaction options carrying ctx.
func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

func loadKey(cfg WalletConfig) (*ecdsa.PrivateKey, error) {
	if hexKey := strings.TrimSpace(cfg.PrivateKey); hexKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return key, nil
	}
	if cfg.KeystorePath == "" {
		return nil, ErrNoWallet
	}
	data, err := os.ReadFile(cfg.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	decrypted, err := keystore.DecryptKey(data, cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return decrypted.PrivateKey, nil
}
