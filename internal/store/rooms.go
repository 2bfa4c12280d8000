package store

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"parlor/internal/domain"
)

type RoomRepository struct {
	db *badger.DB
}

var _ RoomRepo = (*RoomRepository)(nil)

func NewRoomRepository(db *badger.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Get(id domain.RoomID) (*domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixRoom + string(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &room)
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &room, nil
}

func (r *RoomRepository) Put(room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return withRetry("room.put", func() error {
		return mapErr(r.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(prefixRoom+string(room.ID)), data)
		}))
	})
}

func (r *RoomRepository) Delete(id domain.RoomID) error {
	return withRetry("room.delete", func() error {
		return mapErr(r.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(prefixRoom + string(id)))
		}))
	})
}

func (r *RoomRepository) DeleteAll() (bool, error) {
	return dropPrefix(r.db, prefixRoom)
}
