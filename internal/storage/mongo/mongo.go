// mongo — реализация storage.Store поверх MongoDB.
//
// Одна область — один документ коллекции sessions с _id = scope.
// Пара токенов пишется одним $set по одному документу, что в MongoDB атомарно.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pribylovaa/go-weibo-monitor/internal/models"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
)

const (
	sessionsCollection = "sessions"
	defaultDBName      = "dashboard"
)

// sessionDoc — документ области. Отсутствующие поля не сериализуются.
type sessionDoc struct {
	Scope        string    `bson:"_id"`
	AccessToken  string    `bson:"access_token,omitempty"`
	RefreshToken string    `bson:"refresh_token,omitempty"`
	Username     string    `bson:"username,omitempty"`
	User         string    `bson:"user,omitempty"`
	UpdatedAt    time.Time `bson:"updated_at,omitempty"`
}

type Store struct {
	client   *mongodriver.Client
	sessions *mongodriver.Collection
	scope    string
}

// New подключается к MongoDB и проверяет соединение.
// Имя БД берётся из пути URI, иначе — "dashboard".
func New(ctx context.Context, uri, scope string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(uri))

	return &Store{
		client:   cli,
		sessions: db.Collection(sessionsCollection),
		scope:    scope,
	}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.client.Disconnect(ctx)
}

func (s *Store) filter() bson.M { return bson.M{"_id": s.scope} }

func (s *Store) load(ctx context.Context, op string) (*sessionDoc, error) {
	var doc sessionDoc
	if err := s.sessions.FindOne(ctx, s.filter()).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &doc, nil
}

func (s *Store) set(ctx context.Context, op string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()

	_, err := s.sessions.UpdateOne(ctx, s.filter(),
		bson.M{"$set": fields},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) unset(ctx context.Context, op string, keys ...string) error {
	fields := bson.M{}
	for _, k := range keys {
		fields[k] = ""
	}

	if _, err := s.sessions.UpdateOne(ctx, s.filter(), bson.M{"$unset": fields}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) Tokens(ctx context.Context) (models.TokenPair, error) {
	doc, err := s.load(ctx, "storage/mongo/Tokens")
	if err != nil {
		return models.TokenPair{}, err
	}

	pair := models.TokenPair{AccessToken: doc.AccessToken, RefreshToken: doc.RefreshToken}
	if !pair.Complete() {
		return models.TokenPair{}, storage.ErrNotFound
	}

	return pair, nil
}

func (s *Store) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	const op = "storage/mongo/SaveTokens"

	if !pair.Complete() {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPair)
	}

	return s.set(ctx, op, bson.M{
		storage.KeyAccessToken:  pair.AccessToken,
		storage.KeyRefreshToken: pair.RefreshToken,
	})
}

func (s *Store) ClearSession(ctx context.Context) error {
	return s.unset(ctx, "storage/mongo/ClearSession",
		storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUser)
}

func (s *Store) User(ctx context.Context) (json.RawMessage, error) {
	doc, err := s.load(ctx, "storage/mongo/User")
	if err != nil {
		return nil, err
	}

	if doc.User == "" {
		return nil, storage.ErrNotFound
	}

	return json.RawMessage(doc.User), nil
}

func (s *Store) SaveUser(ctx context.Context, raw json.RawMessage) error {
	return s.set(ctx, "storage/mongo/SaveUser", bson.M{storage.KeyUser: string(raw)})
}

func (s *Store) ClearUser(ctx context.Context) error {
	return s.unset(ctx, "storage/mongo/ClearUser", storage.KeyUser)
}

func (s *Store) Username(ctx context.Context) (string, error) {
	doc, err := s.load(ctx, "storage/mongo/Username")
	if err != nil {
		return "", err
	}

	if doc.Username == "" {
		return "", storage.ErrNotFound
	}

	return doc.Username, nil
}

func (s *Store) SaveUsername(ctx context.Context, username string) error {
	return s.set(ctx, "storage/mongo/SaveUsername", bson.M{storage.KeyUsername: username})
}

func (s *Store) ClearUsername(ctx context.Context) error {
	return s.unset(ctx, "storage/mongo/ClearUsername", storage.KeyUsername)
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
// Если оно отсутствует или не поддается расшифровке, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

var _ storage.Store = (*Store)(nil)
