// Package transaction reads recorded pool history for replay.
package transaction

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	ui "github.com/holiman/uint256"
)

const (
	TypeMint  = "Mint"
	TypeBurn  = "Burn"
	TypeSwap  = "Swap"
	TypeFlash = "Flash"
)

// TransactionInput is one record of the history file. Amounts are base ten
// strings. Swaps give the input side as a positive amount; a negative amount
// marks the output side and is ignored.
type TransactionInput struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	Amount       string `json:"amount,omitempty"`
	SqrtPriceX96 string `json:"sqrtPriceX96,omitempty"`
	Tick         int    `json:"tick,omitempty"`
	TickLower    int    `json:"tickLower,omitempty"`
	TickUpper    int    `json:"tickUpper,omitempty"`
}

type Transaction struct {
	Type      string
	ID        string
	Timestamp int64
	Amount    *ui.Int
	Amount0   *ui.Int
	Amount1   *ui.Int
	// SqrtPriceX96 is the recorded price after a swap, zero when absent.
	SqrtPriceX96 *ui.Int
	Tick         int
	TickLower    int
	TickUpper    int
}

func parseAmount(s string) (*ui.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return ui.NewInt(0), nil
	}
	return ui.FromDecimal(s)
}

func Parse(in TransactionInput) (Transaction, error) {
	switch in.Type {
	case TypeMint, TypeBurn, TypeSwap, TypeFlash:
	default:
		return Transaction{}, fmt.Errorf("transaction %s: unknown type %q", in.ID, in.Type)
	}
	t := Transaction{
		Type:      in.Type,
		ID:        in.ID,
		Timestamp: in.Timestamp,
		Tick:      in.Tick,
		TickLower: in.TickLower,
		TickUpper: in.TickUpper,
	}
	var err error
	for _, f := range []struct {
		dst **ui.Int
		src string
	}{
		{&t.Amount, in.Amount},
		{&t.Amount0, in.Amount0},
		{&t.Amount1, in.Amount1},
		{&t.SqrtPriceX96, in.SqrtPriceX96},
	} {
		if *f.dst, err = parseAmount(f.src); err != nil {
			return Transaction{}, fmt.Errorf("transaction %s: %w", in.ID, err)
		}
	}
	return t, nil
}

// Load reads a JSON array of records from path, ordered by timestamp.
func Load(path string) ([]Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inputs []TransactionInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	transactions := make([]Transaction, 0, len(inputs))
	for _, in := range inputs {
		t, err := Parse(in)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Timestamp < transactions[j].Timestamp
	})
	return transactions, nil
}
