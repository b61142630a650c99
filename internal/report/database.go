package report

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	reportBucketName     = "reports"
	comparisonBucketName = "comparisons"
	pairBucketName       = "comparison_pairs" // old|new -> comparison ID
)

// DB defines the interface for database operations
type DB interface {
	// SaveReport saves a report to the database
	SaveReport(report *Report) error

	// GetReport retrieves a report by ID
	GetReport(id string) (*Report, error)

	// ListReports returns all reports
	ListReports() ([]*Report, error)

	// DeleteReport removes a report and every comparison that references it
	DeleteReport(id string) error

	// SaveComparison stores a comparison, replacing any earlier one for the same
	// (old, new) pair. The stored record is returned with its final ID.
	SaveComparison(record *ComparisonRecord) (*ComparisonRecord, error)

	// GetComparison retrieves a comparison by ID
	GetComparison(id string) (*ComparisonRecord, error)

	// ListComparisons returns all comparisons
	ListComparisons() ([]*ComparisonRecord, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{reportBucketName, comparisonBucketName, pairBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func pairKey(oldID, newID string) []byte {
	return []byte(oldID + "|" + newID)
}

// SaveReport saves a report to the database
func (b *BoltDB) SaveReport(report *Report) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		return bucket.Put([]byte(report.ID), data)
	})
}

// GetReport retrieves a report by ID
func (b *BoltDB) GetReport(id string) (*Report, error) {
	var report *Report
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListReports returns all reports
func (b *BoltDB) ListReports() ([]*Report, error) {
	reports := make([]*Report, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var report Report
			if err := json.Unmarshal(v, &report); err != nil {
				return fmt.Errorf("unmarshaling report: %w", err)
			}
			reports = append(reports, &report)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// DeleteReport removes a report and its comparisons in one transaction
func (b *BoltDB) DeleteReport(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(reportBucketName)).Delete([]byte(id)); err != nil {
			return err
		}

		comparisons := tx.Bucket([]byte(comparisonBucketName))
		pairs := tx.Bucket([]byte(pairBucketName))

		// Collect first; bbolt forbids deleting while iterating with ForEach
		var stale []*ComparisonRecord
		err := comparisons.ForEach(func(k, v []byte) error {
			var record ComparisonRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling comparison: %w", err)
			}
			if record.OldReport.ID == id || record.NewReport.ID == id {
				stale = append(stale, &record)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, record := range stale {
			if err := comparisons.Delete([]byte(record.ID)); err != nil {
				return err
			}
			if err := pairs.Delete(pairKey(record.OldReport.ID, record.NewReport.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveComparison upserts a comparison on its (old, new) report pair
func (b *BoltDB) SaveComparison(record *ComparisonRecord) (*ComparisonRecord, error) {
	saved := *record
	err := b.db.Update(func(tx *bbolt.Tx) error {
		pairs := tx.Bucket([]byte(pairBucketName))
		key := pairKey(saved.OldReport.ID, saved.NewReport.ID)
		if existing := pairs.Get(key); existing != nil {
			saved.ID = string(existing)
		}

		data, err := json.Marshal(&saved)
		if err != nil {
			return fmt.Errorf("marshaling comparison: %w", err)
		}
		if err := tx.Bucket([]byte(comparisonBucketName)).Put([]byte(saved.ID), data); err != nil {
			return err
		}
		return pairs.Put(key, []byte(saved.ID))
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// GetComparison retrieves a comparison by ID
func (b *BoltDB) GetComparison(id string) (*ComparisonRecord, error) {
	var record *ComparisonRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(comparisonBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("comparison %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListComparisons returns all comparisons
func (b *BoltDB) ListComparisons() ([]*ComparisonRecord, error) {
	records := make([]*ComparisonRecord, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(comparisonBucketName)).ForEach(func(k, v []byte) error {
			var record ComparisonRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling comparison: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
