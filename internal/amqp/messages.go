package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotRefreshedMessage announces a successful refresh cycle. Consumers
// that want the data itself read it from the HTTP boundary; the message
// carries only the cycle's identity and sizes.
type SnapshotRefreshedMessage struct {
	FetchedAt time.Time `json:"fetched_at"`
	TableRows int       `json:"table_rows"`
	RawRows   int       `json:"raw_rows"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSnapshotRefreshedMessage(fetchedAt time.Time, tableRows, rawRows int) *SnapshotRefreshedMessage {
	return &SnapshotRefreshedMessage{
		FetchedAt: fetchedAt,
		TableRows: tableRows,
		RawRows:   rawRows,
		Timestamp: time.Now(),
	}
}

func (m *SnapshotRefreshedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SnapshotRefreshedMessageFromJSON(data []byte) (*SnapshotRefreshedMessage, error) {
	var msg SnapshotRefreshedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
