package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dgraph-io/badger/v4"

	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
)

const (
	markerPrefix = "marker:"
	ackPrefix    = "ack:"
)

// MarkerKey returns the idempotency key of a reminder occurrence. The date
// leads the key so old markers can be pruned with a prefix scan.
func MarkerKey(occ health.Occurrence) string {
	return markerPrefix + occ.Date + ":" + occurrenceHash(occ)
}

func ackKey(occ health.Occurrence) string {
	return ackPrefix + occ.Date + ":" + occurrenceHash(occ)
}

func occurrenceHash(occ health.Occurrence) string {
	sum := sha256.Sum256([]byte(occ.MedicationID + "|" + occ.Date + "|" + occ.Time))
	return hex.EncodeToString(sum[:8])
}

// MarkDispatched records that the occurrence was dispatched. Markers are
// never updated.
func (s *Store) MarkDispatched(occ health.Occurrence) error {
	return s.setRaw(MarkerKey(occ), "sent")
}

// IsDispatched reports whether a marker exists for the occurrence
func (s *Store) IsDispatched(occ health.Occurrence) (bool, error) {
	return s.existsRaw(MarkerKey(occ))
}

// Acknowledge records that the user marked the occurrence as taken
func (s *Store) Acknowledge(occ health.Occurrence) error {
	return s.setRaw(ackKey(occ), "taken")
}

// IsAcknowledged reports whether the occurrence was marked as taken
func (s *Store) IsAcknowledged(occ health.Occurrence) (bool, error) {
	return s.existsRaw(ackKey(occ))
}

// CountDispatched returns the number of markers written for a date
func (s *Store) CountDispatched(date string) (int, error) {
	prefix := []byte(markerPrefix + date + ":")
	count := 0
	err := s.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.WrapAs(apperrors.ErrStoreRead, err)
	}
	return count, nil
}

// PruneBefore deletes dispatch markers and acknowledgements dated before
// date (YYYY-MM-DD) and returns how many keys were removed.
func (s *Store) PruneBefore(date string) (int, error) {
	var stale [][]byte
	err := s.badger.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{markerPrefix, ackPrefix} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte(prefix)
			it := txn.NewIterator(opts)

			for it.Rewind(); it.Valid(); it.Next() {
				key := string(it.Item().Key())
				keyDate, _, _ := strings.Cut(strings.TrimPrefix(key, prefix), ":")
				// keys are ordered by date, so stop at the first kept one
				if keyDate >= date {
					break
				}
				stale = append(stale, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.WrapAs(apperrors.ErrStoreRead, err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.badger.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, apperrors.WrapAs(apperrors.ErrStoreWrite, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, apperrors.WrapAs(apperrors.ErrStoreWrite, err)
	}
	return len(stale), nil
}

func (s *Store) setRaw(key, value string) error {
	err := s.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return apperrors.WrapAs(apperrors.ErrStoreWrite, err)
	}
	return nil
}

func (s *Store) existsRaw(key string) (bool, error) {
	err := s.badger.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if err == nil {
		return true, nil
	}
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	return false, apperrors.WrapAs(apperrors.ErrStoreRead, err)
}
