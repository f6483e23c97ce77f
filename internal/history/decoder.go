// Package history scans a vault's deposit and withdrawal logs and keeps the
// per-user running totals the accounting layer needs.
package history

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultScope/internal/contracts"
	"vaultScope/internal/model"
)

// Decoder turns raw vault logs into model.VaultEvent values.
type Decoder struct {
	vaultABI    abi.ABI
	topicToName map[common.Hash]string
}

// NewDecoder builds a decoder for the vault's four queue and deposit events.
func NewDecoder() (*Decoder, error) {
	vaultABI, err := contracts.VaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	names := []string{
		model.EventDeposited,
		model.EventWithdrawalQueued,
		model.EventWithdrawalCancelled,
		model.EventWithdrawalRedeemed,
	}
	topicToName := make(map[common.Hash]string, len(names))
	for _, name := range names {
		event, ok := vaultABI.Events[name]
		if !ok {
			return nil, fmt.Errorf("vault abi has no %s event", name)
		}
		topicToName[event.ID] = name
	}
	return &Decoder{vaultABI: vaultABI, topicToName: topicToName}, nil
}

// Topic0 returns the event signatures the decoder understands, for log filters.
func (d *Decoder) Topic0() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToName))
	for _, name := range []string{model.EventDeposited, model.EventWithdrawalQueued, model.EventWithdrawalCancelled, model.EventWithdrawalRedeemed} {
		out = append(out, d.vaultABI.Events[name].ID)
	}
	return out
}

// CanDecode reports whether topic0 is a known vault event.
func (d *Decoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToName[topic0]
	return ok
}

// Decode converts a log into a VaultEvent stamped with chainID and timestamp.
func (d *Decoder) Decode(chainID uint64, log types.Log, timestamp uint64) (model.VaultEvent, error) {
	if len(log.Topics) == 0 {
		return model.VaultEvent{}, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[log.Topics[0]]
	if !ok {
		return model.VaultEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case model.EventDeposited:
		decoded, err = d.decodeDeposited(log)
	case model.EventWithdrawalQueued:
		decoded, err = d.decodeQueued(log)
	case model.EventWithdrawalCancelled:
		decoded, err = d.decodeCancelled(log)
	case model.EventWithdrawalRedeemed:
		decoded, err = d.decodeRedeemed(log)
	}
	if err != nil {
		return model.VaultEvent{}, fmt.Errorf("decode %s: %w", name, err)
	}

	return model.VaultEvent{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Vault:       log.Address.Hex(),
		EventName:   name,
		Timestamp:   timestamp,
		Decoded:     decoded,
	}, nil
}

func (d *Decoder) decodeDeposited(log types.Log) (model.DepositedEventData, error) {
	event := d.vaultABI.Events[model.EventDeposited]
	var indexed struct {
		User common.Address
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.DepositedEventData{}, err
	}
	values, err := unpackBigInts(event, log.Data, 3)
	if err != nil {
		return model.DepositedEventData{}, err
	}
	return model.DepositedEventData{
		User:    indexed.User.Hex(),
		AmountX: values[0].String(),
		AmountY: values[1].String(),
		Shares:  values[2].String(),
	}, nil
}

func (d *Decoder) decodeQueued(log types.Log) (model.WithdrawalQueuedEventData, error) {
	event := d.vaultABI.Events[model.EventWithdrawalQueued]
	var indexed struct {
		Sender common.Address
		User   common.Address
		Round  *big.Int
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.WithdrawalQueuedEventData{}, err
	}
	round, err := roundIndex(indexed.Round)
	if err != nil {
		return model.WithdrawalQueuedEventData{}, err
	}
	values, err := unpackBigInts(event, log.Data, 1)
	if err != nil {
		return model.WithdrawalQueuedEventData{}, err
	}
	return model.WithdrawalQueuedEventData{
		Sender: indexed.Sender.Hex(),
		User:   indexed.User.Hex(),
		Round:  round,
		Shares: values[0].String(),
	}, nil
}

func (d *Decoder) decodeCancelled(log types.Log) (model.WithdrawalCancelledEventData, error) {
	event := d.vaultABI.Events[model.EventWithdrawalCancelled]
	var indexed struct {
		Sender    common.Address
		Recipient common.Address
		Round     *big.Int
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.WithdrawalCancelledEventData{}, err
	}
	round, err := roundIndex(indexed.Round)
	if err != nil {
		return model.WithdrawalCancelledEventData{}, err
	}
	values, err := unpackBigInts(event, log.Data, 1)
	if err != nil {
		return model.WithdrawalCancelledEventData{}, err
	}
	return model.WithdrawalCancelledEventData{
		Sender:    indexed.Sender.Hex(),
		Recipient: indexed.Recipient.Hex(),
		Round:     round,
		Shares:    values[0].String(),
	}, nil
}

func (d *Decoder) decodeRedeemed(log types.Log) (model.WithdrawalRedeemedEventData, error) {
	event := d.vaultABI.Events[model.EventWithdrawalRedeemed]
	var indexed struct {
		Sender    common.Address
		Recipient common.Address
		Round     *big.Int
	}
	if err := parseTopics(event, log.Topics, &indexed); err != nil {
		return model.WithdrawalRedeemedEventData{}, err
	}
	round, err := roundIndex(indexed.Round)
	if err != nil {
		return model.WithdrawalRedeemedEventData{}, err
	}
	values, err := unpackBigInts(event, log.Data, 3)
	if err != nil {
		return model.WithdrawalRedeemedEventData{}, err
	}
	return model.WithdrawalRedeemedEventData{
		Sender:    indexed.Sender.Hex(),
		Recipient: indexed.Recipient.Hex(),
		Round:     round,
		Shares:    values[0].String(),
		AmountX:   values[1].String(),
		AmountY:   values[2].String(),
	}, nil
}

func parseTopics(event abi.Event, topics []common.Hash, out interface{}) error {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(topics))
	}
	if err := abi.ParseTopics(out, indexed, topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
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

func unpackBigInts(event abi.Event, data []byte, n int) ([]*big.Int, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != n {
		return nil, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	out := make([]*big.Int, n)
	for i, v := range values {
		b, ok := v.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%s value %d: unsupported type %T", event.Name, i, v)
		}
		out[i] = b
	}
	return out, nil
}

func roundIndex(v *big.Int) (uint64, error) {
	if v == nil || !v.IsUint64() {
		return 0, fmt.Errorf("round index out of range: %v", v)
	}
	return v.Uint64(), nil
}
