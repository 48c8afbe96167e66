package config

// Storage backends understood by the node.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Storage selects the key-value store backing protocol state.
type Storage struct {
	Backend string `toml:"Backend"`
	Path    string `toml:"Path"`
}

// FlashLoan configures the flash-loan facility.
type FlashLoan struct {
	FeeBps uint64 `toml:"FeeBps"`
}

// Roles lists the bech32 addresses granted each role at genesis.
type Roles struct {
	Admins  []string `toml:"Admins"`
	Oracles []string `toml:"Oracles"`
}

// Pauses captures the modules that start paused.
type Pauses struct {
	Lending   bool `toml:"Lending"`
	FlashLoan bool `toml:"FlashLoan"`
}

// GenesisToken describes a token deployed when the state is first created.
type GenesisToken struct {
	Symbol string `toml:"Symbol"`
	Name   string `toml:"Name"`
	Owner  string `toml:"Owner"`
	// Supply is a base-10 integer credited to Owner.
	Supply string `toml:"Supply"`
	// Reserve registers the token as a lending reserve.
	Reserve bool `toml:"Reserve"`
	// Price is the initial oracle price; empty keeps the default of one.
	Price string `toml:"Price"`
	// FlashLiquidity is moved from Owner to the flash-loan facility.
	FlashLiquidity string `toml:"FlashLiquidity"`
}
