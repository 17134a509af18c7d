package cache

import (
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketNotebooks = []byte("optimized_notebooks")

// BoltStore は Store のbboltファイル実装です
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore は指定パスのデータベースを開き、バケットを初期化します
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("キャッシュDBのオープンに失敗: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNotebooks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("キャッシュバケットの初期化に失敗: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get は Store インターフェースの実装
func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketNotebooks).Get([]byte(key))
		if data != nil {
			value = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Put は Store インターフェースの実装
func (s *BoltStore) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNotebooks).Put([]byte(key), value)
	})
}

// Close は Store インターフェースの実装
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Len は保存されているエントリ数を返します
func (s *BoltStore) Len() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketNotebooks).Stats().KeyN
		return nil
	})
	return count, err
}

// Clear は全エントリを削除します
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketNotebooks); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketNotebooks)
		return err
	})
}
