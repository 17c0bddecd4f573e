package feed

import (
	"fmt"
	"slices"
	"time"

	"github.com/ardanlabs/blockfeed/foundation/validate"
)

// Event represents a synthetic on-chain occurrence. Events are never mutated
// after synthesis. The JSON form is both the wire format of the feed API
// and the format persisted by client caches.
type Event struct {
	ID              string    `json:"id" validate:"required"`
	Title           string    `json:"title" validate:"required"`
	Content         string    `json:"content"`
	Author          string    `json:"author"`
	Category        string    `json:"category" validate:"required,category"`
	Chain           string    `json:"chain" validate:"required,chain"`
	Date            time.Time `json:"date" validate:"required"`
	TransactionHash string    `json:"transactionHash,omitempty"`
	FromAddress     string    `json:"fromAddress,omitempty"`
	ToAddress       string    `json:"toAddress,omitempty"`
	BlockHeight     uint64    `json:"blockHeight,omitempty"`
	GasUsed         uint64    `json:"gasUsed,omitempty"`
	ReactValue      string    `json:"reactValue,omitempty"`
	EventType       string    `json:"eventType,omitempty"`
}

// Validate checks the event against the currently recognized category and
// chain sets.
func (e Event) Validate() error {
	return validate.Check(e)
}

// =============================================================================

// Set of categories an event can belong to.
const (
	CategoryDeFi           = "defi"
	CategoryNFT            = "nft"
	CategoryGovernance     = "governance"
	CategorySecurity       = "security"
	CategoryInfrastructure = "infrastructure"
)

var categories = []string{
	CategoryDeFi,
	CategoryNFT,
	CategoryGovernance,
	CategorySecurity,
	CategoryInfrastructure,
}

// Categories returns the recognized categories.
func Categories() []string {
	return slices.Clone(categories)
}

// IsCategory reports whether the category is recognized.
func IsCategory(category string) bool {
	return slices.Contains(categories, category)
}

// =============================================================================

// Set of chains the generator can synthesize events for.
const (
	ChainEthereum = "ethereum"
	ChainSolana   = "solana"
	ChainPolygon  = "polygon"
	ChainArbitrum = "arbitrum"
	ChainBase     = "base"
)

// Chain describes the properties of a supported chain the generator uses
// when producing filler values.
type Chain struct {
	Name       string
	Label      string
	Symbol     string
	BaseHeight uint64
	EVM        bool
}

var chains = []Chain{
	{Name: ChainEthereum, Label: "Ethereum", Symbol: "ETH", BaseHeight: 19_000_000, EVM: true},
	{Name: ChainSolana, Label: "Solana", Symbol: "SOL", BaseHeight: 250_000_000, EVM: false},
	{Name: ChainPolygon, Label: "Polygon", Symbol: "POL", BaseHeight: 55_000_000, EVM: true},
	{Name: ChainArbitrum, Label: "Arbitrum", Symbol: "ETH", BaseHeight: 200_000_000, EVM: true},
	{Name: ChainBase, Label: "Base", Symbol: "ETH", BaseHeight: 14_000_000, EVM: true},
}

// Chains returns the names of the supported chains in generation order.
func Chains() []string {
	names := make([]string, len(chains))
	for i, c := range chains {
		names[i] = c.Name
	}
	return names
}

// IsChain reports whether the chain is supported.
func IsChain(name string) bool {
	_, err := lookupChain(name)
	return err == nil
}

func lookupChain(name string) (Chain, error) {
	for _, c := range chains {
		if c.Name == name {
			return c, nil
		}
	}
	return Chain{}, fmt.Errorf("unknown chain %q", name)
}

// =============================================================================

func init() {
	if err := validate.RegisterRule("category", "{0} is not a recognized category", IsCategory); err != nil {
		panic(err)
	}
	if err := validate.RegisterRule("chain", "{0} is not a recognized chain", IsChain); err != nil {
		panic(err)
	}
}
