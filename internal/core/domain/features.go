package domain

// FeatureVector is the input handed to an anomaly scorer.
type FeatureVector struct {
	TxID             string
	Amount           int64
	PegValue         int64
	Origin           Origin
	Memo             string
	SenderRecentTxs  int
	SenderFanOut     int
	RecipientFanIn   int
	SecondsSinceLast float64
	SenderPrivileged bool
	RecipientFlagged bool
}
