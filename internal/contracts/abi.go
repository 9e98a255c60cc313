package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Only the methods and events this service actually calls are declared.
// Extend a fragment when a new call site needs a method.
var abiFragments = map[Name]string{
	Core: `[
		{"type":"function","name":"createGroup","stateMutability":"nonpayable",
		 "inputs":[{"name":"name","type":"string"},{"name":"members","type":"address[]"}],
		 "outputs":[{"name":"groupId","type":"uint256"}]},
		{"type":"function","name":"addExpense","stateMutability":"payable",
		 "inputs":[{"name":"groupId","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"token","type":"address"},{"name":"description","type":"string"}],
		 "outputs":[]},
		{"type":"function","name":"settleDebt","stateMutability":"payable",
		 "inputs":[{"name":"groupId","type":"uint256"},{"name":"creditor","type":"address"},{"name":"amount","type":"uint256"},{"name":"token","type":"address"}],
		 "outputs":[]},
		{"type":"function","name":"platformFeeBP","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"getBalance","stateMutability":"view",
		 "inputs":[{"name":"groupId","type":"uint256"},{"name":"member","type":"address"}],
		 "outputs":[{"name":"","type":"int256"}]},
		{"type":"event","name":"GroupCreated","anonymous":false,
		 "inputs":[{"name":"groupId","type":"uint256","indexed":true},{"name":"creator","type":"address","indexed":true},{"name":"name","type":"string","indexed":false}]}
	]`,
	Token: `[
		{"type":"function","name":"balanceOf","stateMutability":"view",
		 "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"decimals","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"type":"function","name":"symbol","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"string"}]}
	]`,
	Factory: `[
		{"type":"function","name":"getUserGroups","stateMutability":"view",
		 "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]}
	]`,
	Analytics: `[
		{"type":"function","name":"getUserStats","stateMutability":"view",
		 "inputs":[{"name":"user","type":"address"}],
		 "outputs":[{"name":"totalSpent","type":"uint256"},{"name":"totalOwed","type":"uint256"},{"name":"groupCount","type":"uint256"}]}
	]`,
	Governance: `[
		{"type":"function","name":"proposalCount","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"uint256"}]}
	]`,
	MultiToken: `[
		{"type":"function","name":"isSupportedToken","stateMutability":"view",
		 "inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"getSupportedTokens","stateMutability":"view",
		 "inputs":[],"outputs":[{"name":"","type":"address[]"}]}
	]`,
}

var abis = mustParseABIs()

func mustParseABIs() map[Name]abi.ABI {
	out := make(map[Name]abi.ABI, len(abiFragments))
	for name, fragment := range abiFragments {
		parsed, err := abi.JSON(strings.NewReader(fragment))
		if err != nil {
			panic(fmt.Sprintf("contracts: bad ABI for %s: %v", name, err))
		}
		out[name] = parsed
	}
	return out
}
