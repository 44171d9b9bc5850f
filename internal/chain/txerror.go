package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// TxCategory is the coarse failure class shown to users.
type TxCategory string

const (
	CategoryRejected          TxCategory = "rejected"
	CategoryInsufficientFunds TxCategory = "insufficient_funds"
	CategoryReverted          TxCategory = "reverted"
	CategoryNonce             TxCategory = "nonce"
	CategoryGas               TxCategory = "gas"
	CategoryNetwork           TxCategory = "network"
	CategoryUnknown           TxCategory = "unknown"
)

// TxError is a non-fatal transaction failure with a human-readable reason.
type TxError struct {
	Op       string
	Category TxCategory
	Reason   string
	TxHash   string
	Err      error
}

func (e *TxError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Message())
	if e.TxHash != "" {
		msg += " (tx " + e.TxHash + ")"
	}
	return msg
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// Message renders the category as a short notification text.
func (e *TxError) Message() string {
	switch e.Category {
	case CategoryRejected:
		return "transaction rejected by wallet"
	case CategoryInsufficientFunds:
		return "insufficient funds for value or gas"
	case CategoryReverted:
		if e.Reason != "" {
			return "transaction reverted: " + e.Reason
		}
		return "transaction reverted"
	case CategoryNonce:
		return "nonce conflict, retry after pending transactions settle"
	case CategoryGas:
		return "gas estimation failed"
	case CategoryNetwork:
		return "network error"
	default:
		if e.Reason != "" {
			return e.Reason
		}
		return "transaction failed"
	}
}

var categoryMatchers = []struct {
	category TxCategory
	needles  []string
}{
	{CategoryRejected, []string{"user rejected", "user denied", "rejected by user", "action_rejected"}},
	{CategoryInsufficientFunds, []string{"insufficient funds"}},
	{CategoryReverted, []string{"execution reverted", "revert", "transaction failed"}},
	{CategoryNonce, []string{"nonce too low", "nonce too high", "replacement transaction underpriced", "already known"}},
	{CategoryGas, []string{"gas required exceeds", "intrinsic gas", "cannot estimate gas", "out of gas"}},
	{CategoryNetwork, []string{"connection refused", "no such host", "timeout", "eof", "429", "too many requests"}},
}

// ClassifyTxError maps an arbitrary send/wait error onto a TxError. It returns
// nil for nil and passes an existing *TxError through unchanged.
func ClassifyTxError(op string, err error) *TxError {
	if err == nil {
		return nil
	}
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr
	}

	out := &TxError{Op: op, Category: CategoryUnknown, Err: err}
	if reason, ok := RevertReason(err); ok {
		out.Category = CategoryReverted
		out.Reason = reason
		return out
	}

	lower := strings.ToLower(err.Error())
	for _, matcher := range categoryMatchers {
		for _, needle := range matcher.needles {
			if strings.Contains(lower, needle) {
				out.Category = matcher.category
				if matcher.category == CategoryReverted {
					out.Reason = reasonFromMessage(err.Error())
				}
				return out
			}
		}
	}
	out.Reason = err.Error()
	return out
}

// RevertReason extracts a Solidity Error(string) reason from an RPC data error.
func RevertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}
	raw, ok := dataErr.ErrorData().(string)
	if !ok || raw == "" {
		return "", false
	}
	data, decodeErr := hexutil.Decode(raw)
	if decodeErr != nil {
		return "", false
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return "", false
	}
	return reason, true
}

func reasonFromMessage(msg string) string {
	const marker = "execution reverted:"
	idx := strings.Index(strings.ToLower(msg), marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(msg[idx+len(marker):])
}
