// Package feed reads transaction records from upstream sources.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/vietddude/purity/internal/core/domain"
)

// Encoding of records on the wire.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// Decoder turns one wire payload into a record.
type Decoder func(data []byte) (domain.TransactionRecord, error)

// NewDecoder returns the decoder for enc.
func NewDecoder(enc Encoding) (Decoder, error) {
	switch Encoding(strings.ToLower(string(enc))) {
	case "", EncodingJSON:
		return decodeJSON, nil
	case EncodingCBOR:
		return decodeCBOR, nil
	}
	return nil, fmt.Errorf("unknown feed encoding %q", enc)
}

func decodeJSON(data []byte) (domain.TransactionRecord, error) {
	var tx domain.TransactionRecord
	if err := json.Unmarshal(data, &tx); err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("failed to decode json record: %w", err)
	}
	return normalize(tx), nil
}

func decodeCBOR(data []byte) (domain.TransactionRecord, error) {
	var tx domain.TransactionRecord
	if err := cbor.Unmarshal(data, &tx); err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("failed to decode cbor record: %w", err)
	}
	return normalize(tx), nil
}

// normalize maps upstream origin spellings onto canonical origins.
func normalize(tx domain.TransactionRecord) domain.TransactionRecord {
	if tx.Origin != "" {
		tx.Origin = domain.ParseOrigin(string(tx.Origin))
	}
	return tx
}
