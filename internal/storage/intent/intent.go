package intent

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// File format constants.
const (
	// FileName is the intent log file name inside the tenant dir.
	FileName = "intent.log"

	// headerSize is the size of a frame header: length (4) + crc (4).
	headerSize = 8

	DefaultFilePerm = 0600
)

// Errors for intent log operations.
var (
	ErrCorruptedFrame = errors.New("intent: corrupted frame")
	ErrUnknownIntent  = errors.New("intent: unknown intent id")
	ErrLogClosed      = errors.New("intent: log closed")
)

// Kind identifies the multi-step operation an intent covers.
type Kind string

const (
	// KindSaleRecord covers recordSale's stock decrements, sale
	// write, and receipt write.
	KindSaleRecord Kind = "sale_record"

	// KindSaleReverse covers reverseSale's status flip and stock
	// restores.
	KindSaleReverse Kind = "sale_reverse"
)

// Step records one applied sub-operation of an intent, written after
// the sub-operation committed.
type Step struct {
	// Name is the step kind, e.g. "stock_adjusted", "sale_written",
	// "receipt_written".
	Name string `json:"name"`

	// ProductID and Delta describe stock adjustments.
	ProductID string `json:"product_id,omitempty"`
	Delta     int64  `json:"delta,omitempty"`

	// RecordID names a written record for non-stock steps.
	RecordID string `json:"record_id,omitempty"`
}

// Step names written by the sale ledger.
const (
	StepStockAdjusted  = "stock_adjusted"
	StepSaleWritten    = "sale_written"
	StepReceiptWritten = "receipt_written"
	StepStatusFlipped  = "status_flipped"
)

// Pending is a reconstructed intent that was begun but never
// completed; the caller compensates it and then compacts the log.
type Pending struct {
	ID        string
	Kind      Kind
	EntityID  string
	Payload   json.RawMessage
	Steps     []Step
	StartedAt int64
}

// event opcodes.
type opType uint8

const (
	opUnspecified opType = iota
	opBegin
	opStep
	opComplete
)

// wireEvent is the JSON payload of one frame.
type wireEvent struct {
	IntentID  string          `json:"iid"`
	Kind      Kind            `json:"kind,omitempty"`
	EntityID  string          `json:"eid,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Step      *Step           `json:"step,omitempty"`
	Timestamp int64           `json:"ts"`
}

// newIntentID generates a ULID-based intent identifier.
func newIntentID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return strings.ToLower(id.String()), nil
}
