// Package mongodb implements the learning stores on MongoDB. Aggregates are
// stored with their bson tags; profile changes are written as one batch
// document per append so a multi-change append is a single atomic write.
package mongodb

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// Collection names.
const (
	CollProfiles   = "business_profiles"
	CollChanges    = "profile_change_batches"
	CollOutcomes   = "export_outcomes"
	CollPatterns   = "export_patterns"
	CollSelections = "market_selections"
)

const (
	defaultConnectTimeout = 10 * time.Second
	disconnectTimeout     = 5 * time.Second
)

// Store holds the database handle shared by the repository views.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger logging.Logger
}

// NewStore connects to the deployment in cfg and verifies it with a ping.
func NewStore(ctx context.Context, cfg config.MongoConfig, log logging.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "mongo database name is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to connect to mongodb")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "mongodb ping failed")
	}
	s := NewStoreWithDatabase(client.Database(cfg.Database), log)
	s.client = client
	s.logger.Info("Connected to MongoDB", logging.String("database", cfg.Database))
	return s, nil
}

// NewStoreWithDatabase wraps an existing database handle.
func NewStoreWithDatabase(db *mongo.Database, log logging.Logger) *Store {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Store{db: db, logger: log.Named("mongodb")}
}

// EnsureIndexes creates the lookup indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		CollChanges: {{Keys: bson.D{{Key: "business_id", Value: 1}}}},
		CollOutcomes: {
			{Keys: bson.D{{Key: "market", Value: 1}, {Key: "results.successful", Value: 1}}},
			{Keys: bson.D{{Key: "business_id", Value: 1}}},
		},
		CollPatterns:   {{Keys: bson.D{{Key: "industry_type", Value: 1}, {Key: "market_region", Value: 1}}}},
		CollSelections: {{Keys: bson.D{{Key: "business_id", Value: 1}}}},
	}
	for _, name := range []string{CollChanges, CollOutcomes, CollPatterns, CollSelections} {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, specs[name]); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create indexes").WithDetail("collection=" + name)
		}
	}
	return nil
}

// Ping runs the ping command against the store's database.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "mongodb ping failed")
	}
	return nil
}

// Close disconnects the client when the store owns one.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Profiles returns the profile repository view of the store.
func (s *Store) Profiles() business.ProfileRepository { return profileRepo{s} }

// Changes returns the change log view of the store.
func (s *Store) Changes() business.ChangeLog { return changeLog{s} }

// Outcomes returns the outcome repository view of the store.
func (s *Store) Outcomes() export.OutcomeRepository { return outcomeRepo{s} }

// Patterns returns the pattern repository view of the store.
func (s *Store) Patterns() export.PatternRepository { return patternRepo{s} }

// Selections returns the market selection repository view of the store.
func (s *Store) Selections() export.MarketSelectionRepository { return selectionRepo{s} }

// decodeAll drains cur, skipping documents that fail to decode.
func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, log logging.Logger, coll string) ([]*T, error) {
	defer cur.Close(ctx)
	out := make([]*T, 0)
	for cur.Next(ctx) {
		item := new(T)
		if err := cur.Decode(item); err != nil {
			log.Warn("skipping undecodable document",
				logging.String("collection", coll),
				logging.String("id", cur.Current.Lookup("_id").String()),
				logging.Err(err),
			)
			continue
		}
		out = append(out, item)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "cursor iteration failed").WithDetail("collection=" + coll)
	}
	return out, nil
}

func caseInsensitiveEquals(v string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(v) + "$", "$options": "i"}
}

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

type profileRepo struct{ s *Store }

func (r profileRepo) FindByID(ctx context.Context, id string) (*business.Profile, error) {
	p := &business.Profile{}
	err := r.s.db.Collection(CollProfiles).FindOne(ctx, bson.M{"_id": id}).Decode(p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New(errors.ErrCodeProfileNotFound, "business profile not found").WithDetail("id=" + id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load business profile")
	}
	return p, nil
}

func (r profileRepo) Save(ctx context.Context, p *business.Profile) error {
	if p == nil {
		return errors.New(errors.ErrCodeProfileInvalid, "profile is nil")
	}
	_, err := r.s.db.Collection(CollProfiles).ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save business profile")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Change log
// ---------------------------------------------------------------------------

type changeLog struct{ s *Store }

type changeBatch struct {
	BusinessID string                   `bson:"business_id"`
	Changes    []business.ProfileChange `bson:"changes"`
	AppendedAt time.Time                `bson:"appended_at"`
}

func (r changeLog) AppendChanges(ctx context.Context, changes []business.ProfileChange) error {
	if len(changes) == 0 {
		return nil
	}
	batch := changeBatch{BusinessID: changes[0].BusinessID, Changes: changes, AppendedAt: changes[0].Timestamp}
	if _, err := r.s.db.Collection(CollChanges).InsertOne(ctx, batch); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to append profile changes")
	}
	return nil
}

func (r changeLog) FindByBusinessID(ctx context.Context, businessID string) ([]business.ProfileChange, error) {
	return r.find(ctx, businessID, nil)
}

func (r changeLog) FindByTimeRange(ctx context.Context, businessID string, from, to time.Time) ([]business.ProfileChange, error) {
	return r.find(ctx, businessID, bson.M{"timestamp": bson.M{"$gte": from, "$lt": to}})
}

func (r changeLog) find(ctx context.Context, businessID string, filter bson.M) ([]business.ProfileChange, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"business_id": businessID}}},
		{{Key: "$unwind", Value: "$changes"}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$changes"}}},
	}
	if filter != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: filter}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}}}})

	cur, err := r.s.db.Collection(CollChanges).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query profile changes")
	}
	items, err := decodeAll[business.ProfileChange](ctx, cur, r.s.logger, CollChanges)
	if err != nil {
		return nil, err
	}
	out := make([]business.ProfileChange, 0, len(items))
	for _, c := range items {
		c.Timestamp = c.Timestamp.UTC()
		out = append(out, *c)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Outcomes, patterns and selections
// ---------------------------------------------------------------------------

var insertionOrder = options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

type outcomeRepo struct{ s *Store }

func (r outcomeRepo) Append(ctx context.Context, o *export.Outcome) error {
	if o == nil {
		return errors.New(errors.ErrCodeOutcomeInvalid, "outcome is nil")
	}
	if _, err := r.s.db.Collection(CollOutcomes).InsertOne(ctx, o); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert export outcome")
	}
	return nil
}

func (r outcomeRepo) FindSuccessfulByMarket(ctx context.Context, market string) ([]*export.Outcome, error) {
	return r.find(ctx, bson.M{"market": market, "results.successful": true})
}

func (r outcomeRepo) FindByBusinessID(ctx context.Context, businessID string) ([]*export.Outcome, error) {
	return r.find(ctx, bson.M{"business_id": businessID})
}

func (r outcomeRepo) find(ctx context.Context, filter bson.M) ([]*export.Outcome, error) {
	cur, err := r.s.db.Collection(CollOutcomes).Find(ctx, filter, insertionOrder)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query export outcomes")
	}
	return decodeAll[export.Outcome](ctx, cur, r.s.logger, CollOutcomes)
}

type patternRepo struct{ s *Store }

func (r patternRepo) Append(ctx context.Context, p *export.Pattern) error {
	if p == nil {
		return errors.New(errors.ErrCodeValidation, "pattern is nil")
	}
	if _, err := r.s.db.Collection(CollPatterns).InsertOne(ctx, p); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert export pattern")
	}
	return nil
}

func (r patternRepo) Find(ctx context.Context, q export.PatternQuery) ([]*export.Pattern, error) {
	filter := bson.M{}
	for field, v := range map[string]string{
		"industry_type": q.IndustryType,
		"market_region": q.MarketRegion,
		"business_size": q.BusinessSize,
	} {
		if v != "" {
			filter[field] = caseInsensitiveEquals(v)
		}
	}
	cur, err := r.s.db.Collection(CollPatterns).Find(ctx, filter, insertionOrder)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query export patterns")
	}
	return decodeAll[export.Pattern](ctx, cur, r.s.logger, CollPatterns)
}

type selectionRepo struct{ s *Store }

func (r selectionRepo) Append(ctx context.Context, sel *export.MarketSelection) error {
	if sel == nil {
		return errors.New(errors.ErrCodeValidation, "market selection is nil")
	}
	if _, err := r.s.db.Collection(CollSelections).InsertOne(ctx, sel); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert market selection")
	}
	return nil
}

func (r selectionRepo) FindByBusinessID(ctx context.Context, businessID string) ([]*export.MarketSelection, error) {
	cur, err := r.s.db.Collection(CollSelections).Find(ctx, bson.M{"business_id": businessID}, insertionOrder)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query market selections")
	}
	return decodeAll[export.MarketSelection](ctx, cur, r.s.logger, CollSelections)
}
