package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/history"
	"github.com/xraph/entitle/plan"
	entitlestore "github.com/xraph/entitle/store"
)

// Collection name constants.
const (
	colPlans    = "entitle_plans"
	colSubjects = "entitle_subjects"
	colHistory  = "entitle_history"
)

// compile-time interface check
var _ entitlestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Conditional
// writes go through the raw collection so the filter and the update are
// applied by the server as one document operation.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all entitle collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("entitle/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Plan Store ====================

func (s *Store) SyncPlans(ctx context.Context, plans []plan.Plan) error {
	if len(plans) == 0 {
		return nil
	}
	t := now()
	writes := make([]mongo.WriteModel, len(plans))
	for i, p := range plans {
		m := toPlanModel(p, t)
		writes[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": m.ID}).
			SetReplacement(m).
			SetUpsert(true)
	}
	if _, err := s.mdb.Collection(colPlans).BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("entitle/mongo: sync plans: %w", err)
	}
	return nil
}

func (s *Store) ListPlans(ctx context.Context) ([]plan.Plan, error) {
	var models []planModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "price_amount", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("entitle/mongo: list plans: %w", err)
	}

	result := make([]plan.Plan, len(models))
	for i := range models {
		result[i] = fromPlanModel(&models[i])
	}
	return result, nil
}

// ==================== Entitlement Store ====================

func (s *Store) CreateIfAbsent(ctx context.Context, rec *entitlement.Record) (bool, error) {
	res, err := s.mdb.Collection(colSubjects).UpdateOne(ctx,
		bson.M{"_id": rec.SubjectID},
		bson.M{"$setOnInsert": toSubjectModel(rec)},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		// Two concurrent upserts on the same _id: the loser sees a duplicate
		// key and the record exists either way.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("entitle/mongo: create subject: %w", err)
	}
	return res.UpsertedCount > 0, nil
}

func (s *Store) GetRecord(ctx context.Context, subjectID string) (*entitlement.Record, error) {
	var m subjectModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subjectID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, entitle.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("entitle/mongo: get subject: %w", err)
	}
	return fromSubjectModel(&m), nil
}

func (s *Store) SyncEmail(ctx context.Context, subjectID, email string, t time.Time) error {
	_, err := s.mdb.NewUpdate((*subjectModel)(nil)).
		Filter(bson.M{"_id": subjectID, "email": bson.M{"$ne": email}}).
		Set("email", email).
		Set("updated_at", t.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: sync email: %w", err)
	}
	return nil
}

func (s *Store) ResetCycle(ctx context.Context, subjectID, oldAnchor, newAnchor string, t time.Time) (bool, error) {
	return s.updateSubject(ctx, "reset cycle",
		bson.M{"_id": subjectID, "cycle_anchor": oldAnchor},
		bson.M{"$set": bson.M{
			"requests_used": 0,
			"cycle_anchor":  newAnchor,
			"updated_at":    t.UTC(),
		}},
	)
}

func (s *Store) BackfillAnchor(ctx context.Context, subjectID, anchor string, t time.Time) (bool, error) {
	return s.updateSubject(ctx, "backfill anchor",
		bson.M{"_id": subjectID, "cycle_anchor": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"$set": bson.M{
			"cycle_anchor": anchor,
			"updated_at":   t.UTC(),
		}},
	)
}

func (s *Store) UpdateSettings(ctx context.Context, subjectID string, settings entitlement.Settings, t time.Time) error {
	res, err := s.mdb.NewUpdate((*subjectModel)(nil)).
		Filter(bson.M{"_id": subjectID}).
		Set("settings", toSettingsModel(settings)).
		Set("updated_at", t.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("entitle/mongo: update settings: %w", err)
	}
	if res.MatchedCount() == 0 {
		return entitle.ErrSubjectNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) SetPlan(ctx context.Context, subjectID, planID string, expires *time.Time, t time.Time) error {
	rec := entitlement.NewRecord(subjectID, "", t)
	_, err := s.mdb.Collection(colSubjects).UpdateOne(ctx,
		bson.M{"_id": subjectID},
		bson.M{
			"$set": bson.M{
				"plan_id":              planID,
				"subscription_expires": expires,
				"requests_used":        0,
				"updated_at":           t.UTC(),
			},
			"$setOnInsert": bson.M{
				"email":          nil,
				"cycle_anchor":   rec.CycleAnchor,
				"last_action_at": nil,
				"settings":       toSettingsModel(rec.Settings),
				"created_at":     rec.CreatedAt,
			},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("entitle/mongo: set plan: %w", err)
	}
	return nil
}

func (s *Store) Downgrade(ctx context.Context, subjectID, fromPlan string, t time.Time, freeMaxRequests int) (bool, error) {
	// Pipeline form so requests_used can be clamped against its own value.
	update := bson.A{
		bson.M{"$set": bson.M{
			"plan_id":              plan.FreeID,
			"subscription_expires": nil,
			"requests_used":        bson.M{"$min": bson.A{"$requests_used", freeMaxRequests}},
			"updated_at":           t.UTC(),
		}},
	}
	return s.updateSubject(ctx, "downgrade",
		bson.M{
			"_id":                  subjectID,
			"plan_id":              fromPlan,
			"subscription_expires": bson.M{"$ne": nil, "$lt": t.UTC()},
		},
		update,
	)
}

// ==================== Meter Store ====================

func (s *Store) TryConsume(ctx context.Context, subjectID string, limit int, minInterval time.Duration, t time.Time) (bool, error) {
	t = t.UTC()
	return s.updateSubject(ctx, "consume",
		bson.M{
			"_id":           subjectID,
			"requests_used": bson.M{"$lt": limit},
			"$or": bson.A{
				bson.M{"last_action_at": nil},
				bson.M{"last_action_at": bson.M{"$lte": t.Add(-minInterval)}},
			},
		},
		bson.M{
			"$inc": bson.M{"requests_used": 1},
			"$set": bson.M{"last_action_at": t, "updated_at": t},
		},
	)
}

// ==================== History Store ====================

func (s *Store) AppendHistory(ctx context.Context, items []*history.Item) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]any, len(items))
	for i, item := range items {
		docs[i] = toHistoryModel(item)
	}
	_, err := s.mdb.Collection(colHistory).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("entitle/mongo: append history: %w", err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, subjectID string, opts history.ListOpts) ([]*history.Item, error) {
	var models []historyModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"subject_id": subjectID}).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("entitle/mongo: list history: %w", err)
	}

	result := make([]*history.Item, len(models))
	for i := range models {
		item, err := fromHistoryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = item
	}
	return result, nil
}

// ==================== Helpers ====================

// updateSubject runs a filtered single-document update and reports whether
// the filter matched.
func (s *Store) updateSubject(ctx context.Context, op string, filter, update any) (bool, error) {
	res, err := s.mdb.Collection(colSubjects).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("entitle/mongo: %s: %w", op, err)
	}
	return res.MatchedCount > 0, nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all entitle collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPlans: {
			{Keys: bson.D{{Key: "price_amount", Value: 1}}},
		},
		colSubjects: {
			{Keys: bson.D{{Key: "plan_id", Value: 1}}},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colHistory: {
			{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
