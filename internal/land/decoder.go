package land

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"landScope/internal/indexer"
	"landScope/internal/model"
)

// ErrUnknownEvent marks logs whose signature is not part of the contract ABI.
var ErrUnknownEvent = errors.New("unknown event signature")

// Decoder turns raw contract logs into typed events.
type Decoder struct {
	byTopic map[string]abi.Event
}

// NewDecoder builds a decoder for every event in the contract ABI.
func NewDecoder() (*Decoder, error) {
	contractABI, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	byTopic := make(map[string]abi.Event, len(contractABI.Events))
	for _, event := range contractABI.Events {
		byTopic[strings.ToLower(event.ID.Hex())] = event
	}
	return &Decoder{byTopic: byTopic}, nil
}

// Topic0 lists the known event signatures, ordered for stable filters.
func (d *Decoder) Topic0() []common.Hash {
	out := make([]common.Hash, 0, len(d.byTopic))
	for _, event := range d.byTopic {
		out = append(out, event.ID)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hex() < out[j].Hex()
	})
	return out
}

// Decode returns the typed event, or false when the log is not recognized or
// malformed. A false result is a normal skip, not a failure.
func (d *Decoder) Decode(log model.LogRecord) (Decoded, bool) {
	decoded, err := d.DecodeErr(log)
	if err != nil {
		return Decoded{}, false
	}
	return decoded, true
}

// DecodeErr is Decode with the reason for a skip. Unknown signatures wrap ErrUnknownEvent.
func (d *Decoder) DecodeErr(log model.LogRecord) (Decoded, error) {
	topic0 := log.Topic0()
	event, ok := d.byTopic[strings.ToLower(topic0)]
	if !ok {
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownEvent, topic0)
	}

	values, err := unpackEvent(event, log)
	if err != nil {
		return Decoded{}, err
	}

	typed, err := buildEvent(event.Name, values)
	if err != nil {
		return Decoded{}, fmt.Errorf("%s: %w", event.Name, err)
	}
	return Decoded{Log: log, Event: typed}, nil
}

// DecodeLog decodes a go-ethereum log. Block timestamps are not resolved.
func (d *Decoder) DecodeLog(chainID uint64, log types.Log) (Decoded, bool) {
	return d.Decode(indexer.BuildLogRecord(chainID, log, 0, time.Time{}))
}

func buildEvent(name string, f *fields) (Event, error) {
	var event Event
	switch name {
	case "PlotRegistered":
		event = PlotRegistered{
			PlotID:   f.big("plotId"),
			Owner:    f.address("owner"),
			AreaSqm:  f.big("areaSqm"),
			Location: f.string("location"),
		}
	case "TokensAllocated":
		event = TokensAllocated{
			PlotID:      f.big("plotId"),
			Beneficiary: f.address("beneficiary"),
			Amount:      f.big("amount"),
		}
	case "SellOrderCreated":
		event = SellOrderCreated{
			OrderID:          f.big("orderId"),
			Seller:           f.address("seller"),
			Amount:           f.big("amount"),
			PricePerTokenWei: f.big("pricePerTokenWei"),
		}
	case "SellOrderFilled":
		event = SellOrderFilled{
			OrderID:       f.big("orderId"),
			Buyer:         f.address("buyer"),
			Amount:        f.big("amount"),
			TotalPriceWei: f.big("totalPriceWei"),
		}
	case "SellOrderCancelled":
		event = SellOrderCancelled{
			OrderID:        f.big("orderId"),
			Seller:         f.address("seller"),
			AmountReturned: f.big("amountReturned"),
		}
	case "Transfer":
		event = Transfer{
			From:  f.address("from"),
			To:    f.address("to"),
			Value: f.big("value"),
		}
	case "NomineeSet":
		event = NomineeSet{
			PlotID:  f.big("plotId"),
			Owner:   f.address("owner"),
			Nominee: f.address("nominee"),
		}
	case "DeclaredDeceased":
		event = DeclaredDeceased{
			PlotID: f.big("plotId"),
			Owner:  f.address("owner"),
		}
	case "PlotClaimed":
		event = PlotClaimed{
			PlotID:        f.big("plotId"),
			Nominee:       f.address("nominee"),
			PreviousOwner: f.address("previousOwner"),
		}
	default:
		return nil, fmt.Errorf("unsupported event %s", name)
	}
	if f.err != nil {
		return nil, f.err
	}
	return event, nil
}

func unpackEvent(event abi.Event, log model.LogRecord) (*fields, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	topics, err := parseTopicHashes(log.Topics[1:])
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, topics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	data, err := hexutil.Decode(normalizeHex(log.Data))
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return &fields{values: values}, nil
}

// fields reads typed values out of an unpacked event; the first failure sticks.
type fields struct {
	values map[string]interface{}
	err    error
}

func (f *fields) big(name string) *big.Int {
	if f.err != nil {
		return nil
	}
	value, ok := f.values[name].(*big.Int)
	if !ok || value == nil {
		f.err = fmt.Errorf("field %s: unexpected %T", name, f.values[name])
		return nil
	}
	return value
}

func (f *fields) address(name string) common.Address {
	if f.err != nil {
		return common.Address{}
	}
	value, ok := f.values[name].(common.Address)
	if !ok {
		f.err = fmt.Errorf("field %s: unexpected %T", name, f.values[name])
	}
	return value
}

func (f *fields) string(name string) string {
	if f.err != nil {
		return ""
	}
	value, ok := f.values[name].(string)
	if !ok {
		f.err = fmt.Errorf("field %s: unexpected %T", name, f.values[name])
	}
	return value
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

// normalizeHex maps an empty payload to the canonical "0x".
func normalizeHex(data string) string {
	if data == "" {
		return "0x"
	}
	return data
}
