// Package importer orchestrates bulk episode imports: it enumerates the
// show id catalog in batches, fans the work out over the queue and drives
// each delivery through the fetch-and-persist pipeline.
package importer

import "encoding/json"

// ActionProcessBatch marks a message as a batch continuation.
const ActionProcessBatch = "process_batch"

// Message is one work queue message body. A message carrying the
// process_batch action is a continuation instructing the processor to
// enumerate and dispatch the next catalog batch; anything else is a unit
// message naming one show to fetch and persist.
type Message struct {
	Action      string `json:"action,omitempty"`
	ImportID    string `json:"import_id,omitempty"`
	BatchNumber int    `json:"batch_number,omitempty"`
	BatchSize   int    `json:"batch_size,omitempty"`

	// ShowID is a pointer so a unit message lacking the field can be told
	// apart from show id zero.
	ShowID *int `json:"show_id,omitempty"`
}

// IsContinuation reports whether the message is a batch continuation.
func (m *Message) IsContinuation() bool {
	return m.Action == ActionProcessBatch
}

// NewUnitMessage builds a unit message. importID is empty for untracked
// refreshes, such as those driven by the updates poll.
func NewUnitMessage(showID int, importID string) Message {
	return Message{
		ShowID:   &showID,
		ImportID: importID,
	}
}

// NewContinuationMessage builds the continuation for a batch.
func NewContinuationMessage(importID string, batchNumber, batchSize int) Message {
	return Message{
		Action:      ActionProcessBatch,
		ImportID:    importID,
		BatchNumber: batchNumber,
		BatchSize:   batchSize,
	}
}

// ParseMessage decodes a message body.
func ParseMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
