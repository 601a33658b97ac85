// Package archive keeps a local best-effort copy of delivered events in
// BadgerDB for operator inspection. It sits behind the external Sink
// interface: the relay core never reads it back, and losing a record
// only loses the record.
package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	PrefixChat = "chat:"
	PrefixFile = "file:"
)

// Record is the stored shape shared by chat and file entries.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Recipient string    `json:"recipient,omitempty"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
	At        time.Time `json:"at"`
}

type Archive struct {
	db  *badger.DB
	log *slog.Logger
}

func Open(dir string, log *slog.Logger) (*Archive, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening archive at %s: %w", dir, err)
	}
	return &Archive{db: db, log: log}, nil
}

func OpenDB(db *badger.DB, log *slog.Logger) *Archive {
	return &Archive{db: db, log: log}
}

func (a *Archive) Close() error { return a.db.Close() }

// key formats as "{prefix}{timestamp_padded}:{uuid}" so that:
//  1. A prefix scan returns entries in chronological order thanks to
//     the 19-digit zero padding (lexicographical order).
//  2. The UUID disambiguates two entries landing on the same nanosecond.
func key(prefix string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", prefix, at.UnixNano(), id))
}

func (a *Archive) store(prefix string, record Record) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(prefix, record.At, record.ID), value)
	})
}

// List returns up to limit records under a prefix, oldest first.
// A limit of zero means no limit.
func (a *Archive) List(prefix string, limit int) ([]Record, error) {
	var records []Record
	err := a.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			if limit > 0 && len(records) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var record Record
				if err := json.Unmarshal(value, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}
