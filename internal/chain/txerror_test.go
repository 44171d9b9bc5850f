package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type fakeDataError struct {
	msg  string
	data interface{}
}

func (e fakeDataError) Error() string          { return e.msg }
func (e fakeDataError) ErrorData() interface{} { return e.data }

func TestClassifyTxErrorCategories(t *testing.T) {
	cases := []struct {
		err  error
		want TxCategory
	}{
		{errors.New("MetaMask Tx Signature: User denied transaction signature."), CategoryRejected},
		{errors.New("insufficient funds for gas * price + value"), CategoryInsufficientFunds},
		{errors.New("execution reverted: order inactive"), CategoryReverted},
		{errors.New("nonce too low"), CategoryNonce},
		{errors.New("gas required exceeds allowance (0)"), CategoryGas},
		{fmt.Errorf("post: %w", errors.New("dial tcp: connection refused")), CategoryNetwork},
		{errors.New("something odd"), CategoryUnknown},
	}

	for _, tc := range cases {
		got := ClassifyTxError("create sell order", tc.err)
		if got.Category != tc.want {
			t.Fatalf("%q: want %s, got %s", tc.err, tc.want, got.Category)
		}
		if !errors.Is(got, tc.err) {
			t.Fatalf("%q: classified error must wrap the original", tc.err)
		}
	}
}

func TestClassifyTxErrorRevertMessage(t *testing.T) {
	got := ClassifyTxError("cancel order", errors.New("execution reverted: not seller"))
	if got.Reason != "not seller" {
		t.Fatalf("unexpected reason %q", got.Reason)
	}
	if got.Message() != "transaction reverted: not seller" {
		t.Fatalf("unexpected message %q", got.Message())
	}
}

func TestClassifyTxErrorRevertData(t *testing.T) {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatalf("new type: %v", err)
	}
	packed, err := abi.Arguments{{Type: stringType}}.Pack("amount exceeds remaining")
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	payload := append(append([]byte{}, selector...), packed...)

	got := ClassifyTxError("buy", fakeDataError{msg: "execution reverted", data: hexutil.Encode(payload)})
	if got.Category != CategoryReverted || got.Reason != "amount exceeds remaining" {
		t.Fatalf("unexpected classification: %+v", got)
	}
}

func TestClassifyTxErrorPassthrough(t *testing.T) {
	if ClassifyTxError("noop", nil) != nil {
		t.Fatalf("nil error must classify to nil")
	}
	original := &TxError{Op: "buy", Category: CategoryReverted, Reason: "x"}
	if got := ClassifyTxError("other", fmt.Errorf("wrap: %w", original)); got != original {
		t.Fatalf("existing TxError should pass through")
	}
}
