package balance

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/pkg/factory"
)

const (
	balanceColl = "balances"
	casRetries  = 8
)

var errConflict = errors.New("concurrent balance update")

type accountDoc struct {
	Msisdn   string           `bson:"msisdn"`
	Balance  int64            `bson:"balance"`
	Reserved map[string]int64 `bson:"reserved"`
	Version  int64            `bson:"version"`
}

// MongoStore keeps one document per subscriber. Every mutation is a
// read-modify-write guarded by the document version.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, cfg *factory.Mongodb) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Url))
	if err != nil {
		return nil, errors.Wrapf(err, "connect mongodb [%s]", cfg.Url)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrapf(err, "ping mongodb [%s]", cfg.Url)
	}

	coll := client.Database(cfg.Name).Collection(balanceColl)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "msisdn", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "create msisdn index")
	}
	logger.BalanceLog.Infof("MongoDB balance store [%s/%s]", cfg.Name, balanceColl)
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Wrapf(ErrUnavailable, "ping mongodb: %v", err)
	}
	return nil
}

// Seed creates the account with units only when msisdn is not stored yet, so
// restarting nodes never touch a live balance.
func (s *MongoStore) Seed(ctx context.Context, msisdn string, units int64) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"msisdn": msisdn},
		bson.M{"$setOnInsert": bson.M{
			"msisdn":   msisdn,
			"balance":  units,
			"reserved": bson.M{},
			"version":  int64(0),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "seed %s: %v", msisdn, err)
	}
	return nil
}

// SetBalance creates or overwrites an account and drops its reservations.
// Administrative use only; it discards reservations held by open sessions.
func (s *MongoStore) SetBalance(ctx context.Context, msisdn string, units int64) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"msisdn": msisdn},
		bson.M{
			"$set": bson.M{"balance": units, "reserved": bson.M{}},
			"$inc": bson.M{"version": 1},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "set balance %s: %v", msisdn, err)
	}
	return nil
}

func (s *MongoStore) load(ctx context.Context, subscriber string) (*accountDoc, error) {
	var doc accountDoc
	err := s.coll.FindOne(ctx, bson.M{"msisdn": subscriber}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(ErrUnknownSubscriber, "msisdn %s", subscriber)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "find %s: %v", subscriber, err)
	}
	if doc.Reserved == nil {
		doc.Reserved = make(map[string]int64)
	}
	return &doc, nil
}

// update applies mutate to the stored document and writes it back if nobody
// else wrote in between, retrying a bounded number of times.
func (s *MongoStore) update(ctx context.Context, subscriber string, mutate func(*accountDoc)) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		doc, err := s.load(ctx, subscriber)
		if err != nil {
			return err
		}
		version := doc.Version
		mutate(doc)

		res, err := s.coll.UpdateOne(ctx,
			bson.M{"msisdn": subscriber, "version": version},
			bson.M{"$set": bson.M{
				"balance":  doc.Balance,
				"reserved": doc.Reserved,
				"version":  version + 1,
			}})
		if err != nil {
			return errors.Wrapf(ErrUnavailable, "update %s: %v", subscriber, err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
		logger.BalanceLog.Debugf("Balance of %s changed concurrently, retry %d", subscriber, attempt+1)
		select {
		case <-ctx.Done():
			return errors.Wrap(ErrUnavailable, ctx.Err().Error())
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
	return errors.Wrapf(ErrUnavailable, "%s: %v", subscriber, errConflict)
}

func (s *MongoStore) Lookup(ctx context.Context, subscriber string) error {
	_, err := s.load(ctx, subscriber)
	return err
}

func (s *MongoStore) Reserve(ctx context.Context, key Key, units int64) (int64, error) {
	var granted int64
	err := s.update(ctx, key.Subscriber, func(doc *accountDoc) {
		granted = grant(doc.Balance, units)
		doc.Balance -= granted
		if granted > 0 {
			doc.Reserved[key.ReservationID()] += granted
		}
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}

func (s *MongoStore) Debit(ctx context.Context, key Key, used int64) error {
	return s.update(ctx, key.Subscriber, func(doc *accountDoc) {
		id := key.ReservationID()
		var left int64
		doc.Balance, left = settle(doc.Balance, doc.Reserved[id], used)
		if left > 0 {
			doc.Reserved[id] = left
		} else {
			delete(doc.Reserved, id)
		}
	})
}

func (s *MongoStore) Release(ctx context.Context, key Key) error {
	return s.update(ctx, key.Subscriber, func(doc *accountDoc) {
		id := key.ReservationID()
		doc.Balance += doc.Reserved[id]
		delete(doc.Reserved, id)
	})
}

func (s *MongoStore) Balance(ctx context.Context, subscriber string) (int64, error) {
	doc, err := s.load(ctx, subscriber)
	if err != nil {
		return 0, err
	}
	return doc.Balance, nil
}
