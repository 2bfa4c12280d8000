package store

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"parlor/internal/domain"
)

type UserRepository struct {
	db *badger.DB
}

var _ UserRepo = (*UserRepository)(nil)

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(id domain.UserID) (*domain.User, error) {
	var u domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixUser + string(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &u)
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) Put(u *domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return withRetry("user.put", func() error {
		return mapErr(r.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(prefixUser+string(u.ID)), data)
		}))
	})
}

func (r *UserRepository) DeleteAll() (bool, error) {
	return dropPrefix(r.db, prefixUser)
}
