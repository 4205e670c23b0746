package domain

import "strings"

// Origin describes where the funds of a transfer came from.
type Origin string

const (
	OriginMining   Origin = "mining"
	OriginReward   Origin = "reward"
	OriginP2P      Origin = "p2p"
	OriginExchange Origin = "exchange"
	OriginUnclear  Origin = "unclear"
	OriginOther    Origin = "other"
)

// originAliases maps the spellings seen on upstream feeds to a canonical Origin.
var originAliases = map[string]Origin{
	"mining":               OriginMining,
	"reward":               OriginReward,
	"rewards":              OriginReward,
	"contribution":         OriginReward,
	"contribution_rewards": OriginReward,
	"p2p":                  OriginP2P,
	"exchange":             OriginExchange,
	"bought_exchange":      OriginExchange,
	"entered_exchange":     OriginExchange,
	"unclear":              OriginUnclear,
	"unclear_party":        OriginUnclear,
	"other":                OriginOther,
}

// ParseOrigin normalizes a raw origin string. Unknown values map to OriginOther,
// anything mentioning an exchange maps to OriginExchange.
func ParseOrigin(raw string) Origin {
	s := strings.ToLower(strings.TrimSpace(raw))
	if o, ok := originAliases[s]; ok {
		return o
	}
	switch {
	case strings.Contains(s, "exchange"):
		return OriginExchange
	case strings.Contains(s, "unclear"):
		return OriginUnclear
	}
	return OriginOther
}

// IsDisallowed reports origins that are rejected regardless of configuration.
func (o Origin) IsDisallowed() bool {
	return o == OriginExchange || o == OriginUnclear
}

func (o Origin) String() string { return string(o) }
