package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Block is a tamper-evident record of one finished job.
type Block struct {
	Index      int    `json:"index"`
	Timestamp  string `json:"timestamp"`
	JobID      uint64 `json:"jobId"`
	Board      string `json:"board"`
	Device     string `json:"device"`
	Status     string `json:"status"`
	ResultPath string `json:"resultPath"`
	ResultHash string `json:"resultHash"`
	PrevHash   string `json:"prevHash"`
	Hash       string `json:"hash"`
	Signature  string `json:"signature"`
	PubKey     string `json:"pubKey"`
}

// Entry carries the job fields recorded in a block.
type Entry struct {
	JobID      uint64
	Board      string
	Device     string
	Status     string
	ResultPath string
	ResultHash string
}

// canonicalData returns the JSON bytes used to compute the block hash.
// Hash, Signature and PubKey are excluded.
func (b *Block) canonicalData() ([]byte, error) {
	view := struct {
		Index      int    `json:"index"`
		Timestamp  string `json:"timestamp"`
		JobID      uint64 `json:"jobId"`
		Board      string `json:"board"`
		Device     string `json:"device"`
		Status     string `json:"status"`
		ResultPath string `json:"resultPath"`
		ResultHash string `json:"resultHash"`
		PrevHash   string `json:"prevHash"`
	}{
		Index:      b.Index,
		Timestamp:  b.Timestamp,
		JobID:      b.JobID,
		Board:      b.Board,
		Device:     b.Device,
		Status:     b.Status,
		ResultPath: b.ResultPath,
		ResultHash: b.ResultHash,
		PrevHash:   b.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates SHA256 over canonicalData.
func (b *Block) ComputeHash() (string, error) {
	data, err := b.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewBlock constructs an unsigned block and computes its hash.
func NewBlock(index int, e Entry, prevHash string) (*Block, error) {
	blk := &Block{
		Index:      index,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		JobID:      e.JobID,
		Board:      e.Board,
		Device:     e.Device,
		Status:     e.Status,
		ResultPath: e.ResultPath,
		ResultHash: e.ResultHash,
		PrevHash:   prevHash,
	}

	h, err := blk.ComputeHash()
	if err != nil {
		return nil, errors.Wrap(err, "compute block hash")
	}
	blk.Hash = h
	return blk, nil
}
