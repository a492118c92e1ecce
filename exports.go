package presale

import (
	"github.com/xraph/presale/account"
	"github.com/xraph/presale/id"
	"github.com/xraph/presale/leaderboard"
	"github.com/xraph/presale/stage"
	"github.com/xraph/presale/types"
)

// Re-exported so most callers only import this package.
type (
	Account          = account.Account
	Deposit          = account.Deposit
	Withdrawal       = account.Withdrawal
	LeaderboardEntry = leaderboard.Entry
	Stage            = stage.Stage
	Entity           = types.Entity

	// ID is the identifier type of history records.
	ID = id.ID
)

// Amount helpers.
var (
	Units           = types.Units
	MustParseAmount = types.MustParse
	FormatUSD       = types.FormatUSD
)
