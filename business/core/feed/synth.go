package feed

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// profile ties a category to the authors who write about it and the event
// types it produces.
type profile struct {
	authors    []string
	eventTypes []string
}

var profiles = map[string]profile{
	CategoryDeFi: {
		authors:    []string{"DeFi Pulse", "Yield Watcher", "AMM Analyst"},
		eventTypes: []string{"swap", "liquidity_add", "liquidity_remove", "borrow", "liquidation"},
	},
	CategoryNFT: {
		authors:    []string{"NFT Scout", "Mint Tracker", "Collector Desk"},
		eventTypes: []string{"mint", "sale", "listing", "nft_transfer"},
	},
	CategoryGovernance: {
		authors:    []string{"DAO Reporter", "Governance Desk", "Proposal Bot"},
		eventTypes: []string{"proposal_created", "vote_cast", "proposal_executed"},
	},
	CategorySecurity: {
		authors:    []string{"Chain Sentinel", "Exploit Watch", "Audit Alerts"},
		eventTypes: []string{"large_transfer", "contract_paused", "suspicious_approval"},
	},
	CategoryInfrastructure: {
		authors:    []string{"Node Operator", "Validator Feed", "Bridge Monitor"},
		eventTypes: []string{"block_produced", "validator_joined", "bridge_transfer", "upgrade_scheduled"},
	},
}

// template holds the title and content formats for an event type. Both are
// formatted with the chain label, the amount and the token symbol.
type template struct {
	title   string
	content string
}

var templates = map[string]template{
	"swap":                {"Large swap on %s", "A trader swapped %[2]s %[3]s through a top pool on %[1]s."},
	"liquidity_add":       {"Liquidity added on %s", "%[2]s %[3]s of liquidity entered a pool on %[1]s."},
	"liquidity_remove":    {"Liquidity withdrawn on %s", "%[2]s %[3]s of liquidity left a pool on %[1]s."},
	"borrow":              {"New borrow position on %s", "A wallet borrowed %[2]s %[3]s against collateral on %[1]s."},
	"liquidation":         {"Position liquidated on %s", "A lending position worth %[2]s %[3]s was liquidated on %[1]s."},
	"mint":                {"Collection mint on %s", "A new collection minted with %[2]s %[3]s in fees on %[1]s."},
	"sale":                {"Notable NFT sale on %s", "An NFT changed hands for %[2]s %[3]s on %[1]s."},
	"listing":             {"High value listing on %s", "An NFT was listed for %[2]s %[3]s on %[1]s."},
	"nft_transfer":        {"NFT moved on %s", "A collectible moved between wallets on %[1]s, last valued at %[2]s %[3]s."},
	"proposal_created":    {"New proposal on %s", "A governance proposal requesting %[2]s %[3]s was opened on %[1]s."},
	"vote_cast":           {"Whale vote on %s", "A delegate cast %[2]s %[3]s worth of voting power on %[1]s."},
	"proposal_executed":   {"Proposal executed on %s", "A passed proposal moved %[2]s %[3]s from the treasury on %[1]s."},
	"large_transfer":      {"Large transfer flagged on %s", "%[2]s %[3]s moved to a fresh wallet on %[1]s."},
	"contract_paused":     {"Contract paused on %s", "A protocol paused a contract holding %[2]s %[3]s on %[1]s."},
	"suspicious_approval": {"Suspicious approval on %s", "An unlimited approval was granted over %[2]s %[3]s on %[1]s."},
	"block_produced":      {"Heavy block on %s", "A block carrying %[2]s %[3]s in fees was produced on %[1]s."},
	"validator_joined":    {"Validator joined %s", "A validator staked %[2]s %[3]s to join the active set on %[1]s."},
	"bridge_transfer":     {"Bridge transfer on %s", "%[2]s %[3]s crossed a bridge into %[1]s."},
	"upgrade_scheduled":   {"Upgrade scheduled on %s", "Node operators on %[1]s signaled an upgrade, %[2]s %[3]s staked in favor."},
}

// synthesize produces a single event for the chain. The caller must hold
// the generator lock since the random source is not safe for concurrent use.
func (g *Generator) synthesize(chain Chain, now time.Time) Event {
	g.counter++

	category := categories[g.rnd.IntN(len(categories))]
	prf := profiles[category]
	author := prf.authors[g.rnd.IntN(len(prf.authors))]
	eventType := prf.eventTypes[g.rnd.IntN(len(prf.eventTypes))]
	tmpl := templates[eventType]

	amount := fmt.Sprintf("%.4f", g.rnd.Float64()*float64(g.rnd.IntN(10_000)+1))

	evt := Event{
		ID:          fmt.Sprintf("%d-%d", now.UnixMilli(), g.counter),
		Title:       fmt.Sprintf(tmpl.title, chain.Label),
		Content:     fmt.Sprintf(tmpl.content, chain.Label, amount, chain.Symbol),
		Author:      author,
		Category:    category,
		Chain:       chain.Name,
		Date:        now.UTC(),
		BlockHeight: chain.BaseHeight + g.rnd.Uint64N(1_000_000),
		ReactValue:  amount,
		EventType:   eventType,
	}

	if chain.EVM {
		evt.TransactionHash = crypto.Keccak256Hash(randBytes(g.rnd, 32)).Hex()
		evt.FromAddress = common.BytesToAddress(randBytes(g.rnd, common.AddressLength)).Hex()
		evt.ToAddress = common.BytesToAddress(randBytes(g.rnd, common.AddressLength)).Hex()
		evt.GasUsed = 21_000 + g.rnd.Uint64N(480_000)
	} else {
		evt.TransactionHash = base58.Encode(randBytes(g.rnd, 64))
		evt.FromAddress = base58.Encode(randBytes(g.rnd, 32))
		evt.ToAddress = base58.Encode(randBytes(g.rnd, 32))
	}

	return evt
}

// randBytes fills a slice of n bytes from the random source.
func randBytes(rnd *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i += 8 {
		v := rnd.Uint64()
		for j := 0; j < 8 && i+j < n; j++ {
			b[i+j] = byte(v >> (8 * j))
		}
	}
	return b
}
