package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"ashare-quant-lab/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|seq|date|instrument_id|side)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	runID string,
	seq int,
	date time.Time,
	instrumentID string,
	side domain.Side,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%s",
		runID,
		seq,
		date.Format(domain.DateLayout),
		instrumentID,
		string(side),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
