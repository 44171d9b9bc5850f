package land

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"landScope/internal/model"
)

// Caller is the read-only slice of the chain client the reader needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader is the read-only view of the contract.
type Reader struct {
	caller      Caller
	address     common.Address
	contractABI abi.ABI
}

func NewReader(caller Caller, address common.Address) (*Reader, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	contractABI, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &Reader{caller: caller, address: address, contractABI: contractABI}, nil
}

// SellOrder loads the current state of an order at the latest block.
func (r *Reader) SellOrder(ctx context.Context, id *big.Int) (model.SellOrder, error) {
	values, err := r.call(ctx, "sellOrders", nil, id)
	if err != nil {
		return model.SellOrder{}, err
	}

	order := model.SellOrder{
		ID:               id.String(),
		Seller:           values.address("seller").Hex(),
		AmountTotal:      bigString(values.big("amountTotal")),
		AmountRemaining:  bigString(values.big("amountRemaining")),
		PricePerTokenWei: bigString(values.big("pricePerTokenWei")),
	}
	active, ok := values.values["active"].(bool)
	if !ok && values.err == nil {
		values.err = fmt.Errorf("field active: unexpected %T", values.values["active"])
	}
	if values.err != nil {
		return model.SellOrder{}, fmt.Errorf("sellOrders(%s): %w", id, values.err)
	}
	order.Active = active
	return order, nil
}

// OrderPlot returns the plot linked to an order; zero means no link.
func (r *Reader) OrderPlot(ctx context.Context, id *big.Int) (*big.Int, error) {
	return r.callBig(ctx, "orderPlot", id)
}

// NextOrderID returns the id the next created order will receive.
func (r *Reader) NextOrderID(ctx context.Context) (*big.Int, error) {
	return r.callBig(ctx, "nextOrderId")
}

// BalanceOf returns the token balance of account in base units.
func (r *Reader) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return r.callBig(ctx, "balanceOf", account)
}

// TokenMeta returns symbol and decimals. Defaults are filled in for any call
// that fails, and the first failure is returned alongside them.
func (r *Reader) TokenMeta(ctx context.Context) (model.TokenMeta, error) {
	meta := model.TokenMeta{
		Address:  r.address.Hex(),
		Symbol:   DefaultTokenSymbol,
		Decimals: DefaultTokenDecimals,
	}

	var firstErr error
	if values, err := r.call(ctx, "symbol", nil); err == nil {
		if symbol, ok := values.values[""].(string); ok && symbol != "" {
			meta.Symbol = symbol
		}
	} else {
		firstErr = err
	}

	if values, err := r.call(ctx, "decimals", nil); err == nil {
		if decimals, ok := values.values[""].(uint8); ok {
			meta.Decimals = decimals
		}
	} else if firstErr == nil {
		firstErr = err
	}

	return meta, firstErr
}

func (r *Reader) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	values, err := r.call(ctx, method, nil, args...)
	if err != nil {
		return nil, err
	}
	out := values.big(outputName(r.contractABI, method))
	if values.err != nil {
		return nil, fmt.Errorf("%s: %w", method, values.err)
	}
	return out, nil
}

func (r *Reader) call(ctx context.Context, method string, blockNumber *big.Int, args ...interface{}) (*fields, error) {
	data, err := r.contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := r.address
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values := make(map[string]interface{})
	if err := r.contractABI.UnpackIntoMap(values, method, resp); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return &fields{values: values}, nil
}

func outputName(contractABI abi.ABI, method string) string {
	m, ok := contractABI.Methods[method]
	if !ok || len(m.Outputs) == 0 {
		return ""
	}
	return m.Outputs[0].Name
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
