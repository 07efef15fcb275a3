// Package mongosource provides a MongoDB-backed replay.TrajectorySource,
// following the same collection-per-concern pattern as
// sessionstore/mongostore: one document per session, holding the
// JSON-encoded action envelope that
// replay.EncodeTrajectory/DecodeTrajectory already define.
package mongosource

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/agentctl/controlplane/event"
	"github.com/agentctl/controlplane/replay"
)

const (
	defaultCollection = "agent_trajectories"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures a Source.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Source implements replay.TrajectorySource against a MongoDB collection.
type Source struct {
	collection *mongodriver.Collection
	timeout    time.Duration
}

// New constructs a Source and ensures its index exists.
func New(opts Options) (*Source, error) {
	if opts.Client == nil {
		return nil, errors.New("mongosource: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongosource: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	coll := opts.Client.Database(opts.Database).Collection(collName)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
		return nil, err
	}

	return &Source{collection: coll, timeout: timeout}, nil
}

// Record persists actions as the recorded trajectory for sessionID,
// overwriting any previous recording.
func (s *Source) Record(ctx context.Context, sessionID string, actions []event.Action) error {
	if sessionID == "" {
		return errors.New("mongosource: session id is required")
	}
	raw, err := replay.EncodeTrajectory(actions)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"session_id": sessionID}
	update := bson.M{"$set": bson.M{
		"session_id": sessionID,
		"actions":    raw,
		"updated_at": time.Now().UTC(),
	}}
	_, err = s.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// Load implements replay.TrajectorySource.
func (s *Source) Load(ctx context.Context, sessionID string) ([]event.Action, error) {
	if sessionID == "" {
		return nil, errors.New("mongosource: session id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc trajectoryDocument
	if err := s.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, replay.ErrTrajectoryNotFound
		}
		return nil, err
	}
	return replay.DecodeTrajectory(doc.Actions)
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type trajectoryDocument struct {
	SessionID string    `bson:"session_id"`
	Actions   []byte    `bson:"actions"`
	UpdatedAt time.Time `bson:"updated_at"`
}
