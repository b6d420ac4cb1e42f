package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "state:"

type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens an embedded badger database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(scope, key string) []byte {
	return []byte(badgerKeyPrefix + scope + ":" + key)
}

func (s *BadgerStore) Get(_ context.Context, scope, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(scope, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get state %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

func (s *BadgerStore) Put(_ context.Context, scope, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(scope, key), value)
	})
	if err != nil {
		return fmt.Errorf("set state %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *BadgerStore) Delete(_ context.Context, scope, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(badgerKey(scope, key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete state %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
