package proc

import (
	"fmt"

	"github.com/boltdb/bolt"
	log "github.com/go-pkgz/lgr"
)

const boltBucket = "cache"

// BoltDB store, all entries live in a single bucket
type BoltDB struct {
	DB *bolt.DB
}

// Get entry from bucket, the value is copied out of the transaction
func (b *BoltDB) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := b.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(key)); v != nil {
			data = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("read bolt entry %s: %w", key, err)
	}
	if data == nil {
		return nil, false, nil
	}
	log.Printf("[DEBUG] bolt hit %s, %d bytes", key, len(data))
	return data, true, nil
}

// Put entry to bucket, replacing any previous value
func (b *BoltDB) Put(key string, data []byte) error {
	err := b.DB.Update(func(tx *bolt.Tx) error {
		bucket, e := tx.CreateBucketIfNotExists([]byte(boltBucket))
		if e != nil {
			return e
		}
		return bucket.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("write bolt entry %s: %w", key, err)
	}

	log.Printf("[DEBUG] bolt put %s, %d bytes", key, len(data))
	return nil
}

// Keys lists stored keys in byte order
func (b *BoltDB) Keys() ([]string, error) {
	var result []string
	err := b.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			result = append(result, string(k))
		}
		return nil
	})
	return result, err
}
