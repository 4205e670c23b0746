package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/vietddude/purity/internal/core/domain"
)

// LoadFile reads a batch of records from a JSON array or, for .cbor files,
// a CBOR array.
func LoadFile(path string) ([]domain.TransactionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var txs []domain.TransactionRecord
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		err = cbor.Unmarshal(data, &txs)
	} else {
		err = json.Unmarshal(data, &txs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for i := range txs {
		txs[i] = normalize(txs[i])
	}
	return txs, nil
}
