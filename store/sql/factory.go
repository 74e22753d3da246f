package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-botway/core"
	"github.com/goliatone/go-botway/webhooks"
	"github.com/uptrace/bun"
)

// StoreFactory builds the SQL-backed stores off one shared bun handle. The
// handle can come straight from *bun.DB or from anything exposing DB()
// (the persistence client does).
type StoreFactory struct {
	db *bun.DB

	deliveryStore *DeliveryStore
	activityStore *ActivityStore
}

func NewStoreFactory() *StoreFactory {
	return &StoreFactory{}
}

func NewStoreFactoryFromDB(db *bun.DB) (*StoreFactory, error) {
	factory := NewStoreFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewStoreFactoryFromPersistence(client any) (*StoreFactory, error) {
	factory := NewStoreFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *StoreFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: store factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.deliveryStore != nil && f.activityStore != nil {
		return nil
	}

	deliveryStore, err := NewDeliveryStore(f.db)
	if err != nil {
		return err
	}
	activityStore, err := NewActivityStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryStore = deliveryStore
	f.activityStore = activityStore
	return nil
}

func (f *StoreFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *StoreFactory) DeliveryLedger() webhooks.DeliveryLedger {
	if f == nil || f.deliveryStore == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *StoreFactory) DeliveryStore() *DeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *StoreFactory) ActivityStore() *ActivityStore {
	if f == nil {
		return nil
	}
	return f.activityStore
}

func (f *StoreFactory) ActivityRecorder() core.ActivityRecorder {
	if f == nil || f.activityStore == nil {
		return nil
	}
	return f.activityStore
}

func (f *StoreFactory) ActivityReader() core.ActivityReader {
	if f == nil || f.activityStore == nil {
		return nil
	}
	return f.activityStore
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
