package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type fakeChainID struct {
	id  int64
	err error
}

func (f fakeChainID) GetChainID(context.Context) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return big.NewInt(f.id), nil
}

func TestConnectWithoutWallet(t *testing.T) {
	_, err := Connect(context.Background(), fakeChainID{id: 1}, WalletConfig{}, 0)
	if !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}

func TestConnectHexKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	hexKey := hexutil.Encode(crypto.FromECDSA(key))

	signer, err := Connect(context.Background(), fakeChainID{id: 11155111}, WalletConfig{PrivateKey: " " + hexKey + " "}, 11155111)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if signer.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("address mismatch: %s", signer.Address().Hex())
	}

	ctx := context.Background()
	opts, err := signer.TransactOpts(ctx)
	if err != nil {
		t.Fatalf("transact opts: %v", err)
	}
	if opts.From != signer.Address() || opts.Context != ctx {
		t.Fatalf("transact opts not bound to signer: %+v", opts)
	}
}

func TestConnectKeystore(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	store := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	account, err := store.ImportECDSA(key, "land")
	if err != nil {
		t.Fatalf("import key: %v", err)
	}

	signer, err := Connect(context.Background(), fakeChainID{id: 1}, WalletConfig{
		KeystorePath: account.URL.Path,
		Passphrase:   "land",
	}, 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if signer.Address() != account.Address {
		t.Fatalf("address mismatch: %s != %s", signer.Address().Hex(), account.Address.Hex())
	}

	if _, err := Connect(context.Background(), fakeChainID{id: 1}, WalletConfig{
		KeystorePath: account.URL.Path,
		Passphrase:   "wrong",
	}, 0); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}

func TestConnectWrongChain(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := WalletConfig{PrivateKey: hexutil.Encode(crypto.FromECDSA(key))}

	_, err = Connect(context.Background(), fakeChainID{id: 5}, cfg, 1)
	if !errors.Is(err, ErrWrongChain) {
		t.Fatalf("expected ErrWrongChain, got %v", err)
	}

	unreachable := errors.New("dial tcp: connection refused")
	_, err = Connect(context.Background(), fakeChainID{err: unreachable}, cfg, 1)
	if !errors.Is(err, unreachable) {
		t.Fatalf("expected node error, got %v", err)
	}
}

func TestConnectMalformedKey(t *testing.T) {
	if _, err := Connect(context.Background(), fakeChainID{id: 1}, WalletConfig{PrivateKey: "0xnothex"}, 0); err == nil {
		t.Fatalf("expected malformed key to fail")
	}
}
