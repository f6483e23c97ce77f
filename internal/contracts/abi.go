// Package contracts reads vault, queue, strategy, oracle and pool state over
// eth_call and packs the calldata the vault and strategy accept.
package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const vaultABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountY", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "shares", "type": "uint256"}
    ],
    "name": "Deposited",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "round", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "shares", "type": "uint256"}
    ],
    "name": "WithdrawalQueued",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "round", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "shares", "type": "uint256"}
    ],
    "name": "WithdrawalCancelled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "round", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "shares", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountY", "type": "uint256"}
    ],
    "name": "WithdrawalRedeemed",
    "type": "event"
  },
  {"inputs": [], "name": "getTokenX", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getTokenY", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getStrategy", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [],
    "name": "getBalances",
    "outputs": [
      {"internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"internalType": "uint256", "name": "amountY", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [{"internalType": "address", "name": "account", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getPricePerFullShare",
    "outputs": [
      {"internalType": "uint256", "name": "pricePerShareX", "type": "uint256"},
      {"internalType": "uint256", "name": "pricePerShareY", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"internalType": "uint256", "name": "amountY", "type": "uint256"}
    ],
    "name": "previewShares",
    "outputs": [
      {"internalType": "uint256", "name": "shares", "type": "uint256"},
      {"internalType": "uint256", "name": "effectiveX", "type": "uint256"},
      {"internalType": "uint256", "name": "effectiveY", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"internalType": "uint256", "name": "amountY", "type": "uint256"},
      {"internalType": "uint256", "name": "minShares", "type": "uint256"}
    ],
    "name": "deposit",
    "outputs": [
      {"internalType": "uint256", "name": "shares", "type": "uint256"},
      {"internalType": "uint256", "name": "effectiveX", "type": "uint256"},
      {"internalType": "uint256", "name": "effectiveY", "type": "uint256"}
    ],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "shares", "type": "uint256"},
      {"internalType": "address", "name": "recipient", "type": "address"}
    ],
    "name": "queueWithdrawal",
    "outputs": [{"internalType": "uint256", "name": "round", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "shares", "type": "uint256"}],
    "name": "cancelQueuedWithdrawal",
    "outputs": [{"internalType": "uint256", "name": "round", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "round", "type": "uint256"},
      {"internalType": "address", "name": "recipient", "type": "address"}
    ],
    "name": "redeemQueuedWithdrawal",
    "outputs": [
      {"internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"internalType": "uint256", "name": "amountY", "type": "uint256"}
    ],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const queueABIJSON = `[
  {"inputs": [], "name": "getCurrentRound", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [
      {"internalType": "uint256", "name": "round", "type": "uint256"},
      {"internalType": "address", "name": "user", "type": "address"}
    ],
    "name": "getQueuedWithdrawal",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "round", "type": "uint256"}],
    "name": "getTotalQueuedWithdrawal",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "round", "type": "uint256"}],
    "name": "getRoundRelease",
    "outputs": [
      {"internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"internalType": "uint256", "name": "amountY", "type": "uint256"},
      {"internalType": "bool", "name": "processed", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "round", "type": "uint256"},
      {"internalType": "address", "name": "user", "type": "address"}
    ],
    "name": "getRedeemableAmounts",
    "outputs": [
      {"internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"internalType": "uint256", "name": "amountY", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const strategyABIJSON = `[
  {
    "inputs": [],
    "name": "getIdleBalances",
    "outputs": [
      {"internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"internalType": "uint256", "name": "amountY", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getRange",
    "outputs": [
      {"internalType": "int256", "name": "lower", "type": "int256"},
      {"internalType": "int256", "name": "upper", "type": "int256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {"inputs": [], "name": "getPair", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getAumAnnualFee", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [
      {"internalType": "int256", "name": "newLower", "type": "int256"},
      {"internalType": "int256", "name": "newUpper", "type": "int256"},
      {"internalType": "int256", "name": "desiredActive", "type": "int256"},
      {"internalType": "uint256", "name": "slippageActive", "type": "uint256"},
      {"internalType": "uint256", "name": "amountX", "type": "uint256"},
      {"internalType": "uint256", "name": "amountY", "type": "uint256"},
      {"internalType": "bytes", "name": "distributions", "type": "bytes"}
    ],
    "name": "rebalance",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const oracleABIJSON = `[
  {"inputs": [], "name": "getPrice", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getTwapPrice", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getLastUpdate", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [],
    "name": "getOracleParameters",
    "outputs": [
      {"internalType": "uint256", "name": "minPrice", "type": "uint256"},
      {"internalType": "uint256", "name": "maxPrice", "type": "uint256"},
      {"internalType": "uint256", "name": "heartbeat", "type": "uint256"},
      {"internalType": "uint256", "name": "deviationThreshold", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const tickPoolABIJSON = `[
  {
    "inputs": [],
    "name": "tickSpacing",
    "outputs": [{"internalType": "int24", "name": "", "type": "int24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "slot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
      {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
      {"internalType": "bool", "name": "unlocked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const binPairABIJSON = `[
  {"inputs": [], "name": "getActiveId", "outputs": [{"internalType": "uint24", "name": "activeId", "type": "uint24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getBinStep", "outputs": [{"internalType": "uint16", "name": "", "type": "uint16"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}, {"name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

// lazyABI parses its JSON once on first use.
type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	vaultABI        = &lazyABI{json: vaultABIJSON}
	queueABI        = &lazyABI{json: queueABIJSON}
	strategyABI     = &lazyABI{json: strategyABIJSON}
	oracleABI       = &lazyABI{json: oracleABIJSON}
	tickPoolABI     = &lazyABI{json: tickPoolABIJSON}
	binPairABI      = &lazyABI{json: binPairABIJSON}
	erc20ABIString  = &lazyABI{json: erc20ABIStringJSON}
	erc20ABIBytes32 = &lazyABI{json: erc20ABIBytes32JSON}
)

// VaultABI returns the parsed vault ABI, including its events.
func VaultABI() (abi.ABI, error) { return vaultABI.get() }

// QueueABI returns the parsed withdrawal queue handler ABI.
func QueueABI() (abi.ABI, error) { return queueABI.get() }

// StrategyABI returns the parsed strategy ABI.
func StrategyABI() (abi.ABI, error) { return strategyABI.get() }

// OracleABI returns the parsed price oracle ABI.
func OracleABI() (abi.ABI, error) { return oracleABI.get() }
