package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coinfarm/entity"
	"coinfarm/internal/config"
	"coinfarm/lib/validate"
)

const (
	collectionUsers    = "users"
	collectionChannels = "channels"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
	return client
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(m.ctx)
}

// EnsureIndexes creates the uniqueness constraints the bot relies on:
// one user record per telegram id, one channel record per name.
func (m *MongoDB) EnsureIndexes() error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	users := connection.Database(m.database).Collection(collectionUsers)
	_, err = users.Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "telegram_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}

	channels := connection.Database(m.database).Collection(collectionChannels)
	_, err = channels.Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("channels index: %w", err)
	}
	return nil
}

// UpsertUser finds the user record for telegramId, creating it with default
// balance and counters if absent, and refreshes the display name snapshot.
// The operation is a single atomic find-or-create; a duplicate key raced in
// by a concurrent upsert resolves to a follow-up read.
func (m *MongoDB) UpsertUser(telegramId int64, name string) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "telegram_id", Value: telegramId}}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "name", Value: name}}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "points", Value: int64(entity.DefaultPoints)},
			{Key: "image", Value: entity.DefaultImage},
			{Key: "invited_users", Value: int64(0)},
			{Key: "referred_users", Value: bson.A{}},
			{Key: "registered_at", Value: time.Now().UTC()},
		}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user entity.User
	err = collection.FindOneAndUpdate(m.ctx, filter, update, opts).Decode(&user)
	if err == nil {
		return &user, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("upsert user %d: %w", telegramId, err)
	}

	// Two concurrent first-time upserts can both try to insert; the loser
	// reads the record the winner created.
	err = collection.FindOne(m.ctx, filter).Decode(&user)
	if err != nil {
		return nil, fmt.Errorf("upsert user %d after duplicate: %w", telegramId, err)
	}
	return &user, nil
}

func (m *MongoDB) GetUserById(telegramId int64) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{{Key: "telegram_id", Value: telegramId}}
	var user entity.User
	err = collection.FindOne(m.ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", telegramId, err)
	}
	return &user, nil
}

// CreditReferral credits referrerId for bringing in referredId: points and
// invited counter are incremented and the id appended to the ledger in one
// conditional update that matches only while the id is absent. Processing
// the same referral any number of times, concurrently or not, credits once.
// Returns false when the referrer is unknown or was already credited.
func (m *MongoDB) CreditReferral(referrerId, referredId int64) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	filter := bson.D{
		{Key: "telegram_id", Value: referrerId},
		{Key: "referred_users", Value: bson.D{{Key: "$ne", Value: referredId}}},
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{
			{Key: "points", Value: int64(entity.ReferralBonus)},
			{Key: "invited_users", Value: int64(1)},
		}},
		{Key: "$push", Value: bson.D{{Key: "referred_users", Value: referredId}}},
	}
	res, err := collection.UpdateOne(m.ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("credit referral %d<-%d: %w", referrerId, referredId, err)
	}
	return res.ModifiedCount > 0, nil
}

func (m *MongoDB) CountUsers() (int64, error) {
	connection, err := m.connect()
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	return collection.CountDocuments(m.ctx, bson.D{})
}

// GetChannels returns all mandatory channels ordered by addition time,
// oldest first.
func (m *MongoDB) GetChannels() ([]*entity.Channel, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChannels)
	opts := options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}})
	cursor, err := collection.Find(m.ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find channels: %w", err)
	}
	defer cursor.Close(m.ctx)

	var channels []*entity.Channel
	err = cursor.All(m.ctx, &channels)
	if err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return channels, nil
}

// AddChannel inserts a new mandatory channel. A name collision with an
// existing record is reported as ErrAlreadyExists.
func (m *MongoDB) AddChannel(channel *entity.Channel) error {
	if err := validate.Struct(channel); err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}
	if channel.AddedAt.IsZero() {
		channel.AddedAt = time.Now().UTC()
	}

	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChannels)
	_, err = collection.InsertOne(m.ctx, channel)
	return translateWriteError(err)
}

// DeleteOldestChannel removes the channel with the earliest added_at and
// returns it, so callers can invalidate cache entries referencing it.
// Returns nil when the store is empty.
func (m *MongoDB) DeleteOldestChannel() (*entity.Channel, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionChannels)
	opts := options.FindOneAndDelete().SetSort(bson.D{{Key: "added_at", Value: 1}})

	var channel entity.Channel
	err = collection.FindOneAndDelete(m.ctx, bson.D{}, opts).Decode(&channel)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete oldest channel: %w", err)
	}
	return &channel, nil
}
