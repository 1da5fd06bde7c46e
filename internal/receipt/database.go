package receipt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	filesBucketName    = "files"
	receiptsBucketName = "receipts"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// NextFileID reserves the ID of the next uploaded file
	NextFileID() (int64, error)

	// SaveFile creates or replaces a file record
	SaveFile(file *File) error

	// GetFile retrieves a file by ID
	GetFile(id int64) (*File, error)

	// LatestFileID returns the highest ID uploaded under name, or 0
	LatestFileID(name string) (int64, error)

	// SaveReceipt assigns an ID to a new receipt and stores it together
	// with the file it was extracted from
	SaveReceipt(receipt *Receipt, file *File) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id int64) (*Receipt, error)

	// ListReceipts returns all receipts in ID order
	ListReceipts() ([]*Receipt, error)

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
		if _, err := tx.CreateBucketIfNotExists([]byte(filesBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptsBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// itob encodes an ID as a big-endian key so bucket order is ID order
func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func put(bucket *bbolt.Bucket, id int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	return bucket.Put(itob(id), data)
}

// NextFileID reserves the ID of the next uploaded file
func (b *BoltDB) NextFileID() (int64, error) {
	var id int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		seq, err := tx.Bucket([]byte(filesBucketName)).NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reserving file id: %w", err)
	}
	return id, nil
}

// SaveFile creates or replaces a file record
func (b *BoltDB) SaveFile(file *File) error {
	if file.ID <= 0 {
		return fmt.Errorf("saving file: invalid id %d", file.ID)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket([]byte(filesBucketName)), file.ID, file)
	})
}

// GetFile retrieves a file by ID
func (b *BoltDB) GetFile(id int64) (*File, error) {
	var file *File
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(filesBucketName)).Get(itob(id))
		if data == nil {
			return fmt.Errorf("file %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &file)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// LatestFileID returns the highest ID uploaded under name, or 0
func (b *BoltDB) LatestFileID(name string) (int64, error) {
	var latest int64
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(filesBucketName)).Cursor()
		// Walk backwards; the first match is the newest
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var file File
			if err := json.Unmarshal(v, &file); err != nil {
				return fmt.Errorf("unmarshaling file: %w", err)
			}
			if file.Name == name {
				latest = file.ID
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return latest, nil
}

// SaveReceipt assigns an ID to a new receipt and stores it together with
// the file it was extracted from, in one transaction
func (b *BoltDB) SaveReceipt(receipt *Receipt, file *File) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptsBucketName))
		if receipt.ID == 0 {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("reserving receipt id: %w", err)
			}
			receipt.ID = int64(seq)
		}
		if err := put(bucket, receipt.ID, receipt); err != nil {
			return err
		}
		if file == nil {
			return nil
		}
		file.ReceiptID = receipt.ID
		return put(tx.Bucket([]byte(filesBucketName)), file.ID, file)
	})
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id int64) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(receiptsBucketName)).Get(itob(id))
		if data == nil {
			return fmt.Errorf("receipt %d: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts in ID order
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptsBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
