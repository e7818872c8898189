package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// resolverABI is the automation-network resolver pattern exposed by the
// payment contracts.
const resolverABI = `[
	{"type":"function","name":"checker","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"canExec","type":"bool"},{"name":"execPayload","type":"bytes"}]}
]`

const paymentABI = `[
	{"type":"function","name":"release","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"released","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]}
]`

const erc20ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const factoryABI = `[
	{"type":"function","name":"setTokenAllowed","stateMutability":"nonpayable",
	 "inputs":[{"name":"token","type":"address"},{"name":"allowed","type":"bool"}],"outputs":[]},
	{"type":"function","name":"isTokenAllowed","stateMutability":"view",
	 "inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"bool"}]}
]`

var (
	ResolverABI = mustParse(resolverABI)
	PaymentABI  = mustParse(paymentABI)
	ERC20ABI    = mustParse(erc20ABI)
	FactoryABI  = mustParse(factoryABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("chain: invalid ABI: " + err.Error())
	}
	return parsed
}
