package keeper

import (
	"fmt"
	"strings"

	"github.com/davyttu/confidance-crypto/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// Target kinds
const (
	KindScheduled = models.KindScheduled
	KindRecurring = models.KindRecurring
)

// Target is one payment contract the keeper watches. Resolver is the contract
// exposing checker(); the zero address means the payment contract itself.
type Target struct {
	Kind     string
	Contract common.Address
	Resolver common.Address

	pending bool // unreleased scheduled row in the mirror
}

func (t Target) resolver() common.Address {
	if t.Resolver == (common.Address{}) {
		return t.Contract
	}
	return t.Resolver
}

func (t Target) String() string {
	s := t.Kind + ":" + t.Contract.Hex()
	if t.Resolver != (common.Address{}) {
		s += "@" + t.Resolver.Hex()
	}
	return s
}

// ParseTargets reads a comma separated list of kind:contract[@resolver]
// entries. A bare address is taken as a scheduled payment.
func ParseTargets(s string) ([]Target, error) {
	var out []Target
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		kind := KindScheduled
		if i := strings.Index(raw, ":"); i >= 0 {
			kind, raw = strings.ToLower(raw[:i]), raw[i+1:]
		}
		if kind != KindScheduled && kind != KindRecurring {
			return nil, fmt.Errorf("unknown target kind %q", kind)
		}

		contract, resolver, _ := strings.Cut(raw, "@")
		if !common.IsHexAddress(contract) {
			return nil, fmt.Errorf("invalid contract address %q", contract)
		}
		t := Target{Kind: kind, Contract: common.HexToAddress(contract)}
		if resolver != "" {
			if !common.IsHexAddress(resolver) {
				return nil, fmt.Errorf("invalid resolver address %q", resolver)
			}
			t.Resolver = common.HexToAddress(resolver)
		}
		out = append(out, t)
	}
	return out, nil
}
