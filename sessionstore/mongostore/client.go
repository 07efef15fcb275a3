// Package mongostore provides a MongoDB-backed sessionstore.Store over
// two collections (sessions, runs) of a *mongo.Client, with
// CreateSession implemented as an idempotent $setOnInsert upsert so
// concurrent callers racing to create the same session never clobber an
// existing row.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/agentctl/controlplane/sessionstore"
)

const (
	defaultSessionsCollection = "agent_sessions"
	defaultRunsCollection     = "agent_runs"
	defaultOpTimeout          = 5 * time.Second
)

// Options configures a Store.
type Options struct {
	Client             *mongodriver.Client
	Database           string
	SessionsCollection string
	RunsCollection     string
	Timeout            time.Duration
}

// Store implements sessionstore.Store against MongoDB collections.
type Store struct {
	mongo    *mongodriver.Client
	sessions *mongodriver.Collection
	runs     *mongodriver.Collection
	timeout  time.Duration
}

// New constructs a Store and ensures its indexes exist.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	sessionsName := opts.SessionsCollection
	if sessionsName == "" {
		sessionsName = defaultSessionsCollection
	}
	runsName := opts.RunsCollection
	if runsName == "" {
		runsName = defaultRunsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	sessColl := opts.Client.Database(opts.Database).Collection(sessionsName)
	runColl := opts.Client.Database(opts.Database).Collection(runsName)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, sessColl, runColl); err != nil {
		return nil, err
	}

	return &Store{mongo: opts.Client, sessions: sessColl, runs: runColl, timeout: timeout}, nil
}

// Ping reports whether the underlying Mongo deployment is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.mongo.Ping(ctx, readpref.Primary())
}

func (s *Store) CreateSession(ctx context.Context, sessionID string, createdAt time.Time) (sessionstore.Session, error) {
	if sessionID == "" {
		return sessionstore.Session{}, errors.New("mongostore: session id is required")
	}
	if createdAt.IsZero() {
		return sessionstore.Session{}, errors.New("mongostore: created_at is required")
	}

	existing, err := s.LoadSession(ctx, sessionID)
	if err == nil {
		if existing.Status == sessionstore.StatusEnded {
			return sessionstore.Session{}, sessionstore.ErrSessionEnded
		}
		return existing, nil
	}
	if !errors.Is(err, sessionstore.ErrSessionNotFound) {
		return sessionstore.Session{}, err
	}

	now := time.Now().UTC()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"session_id": sessionID,
			"status":     sessionstore.StatusActive,
			"created_at": createdAt.UTC(),
			"updated_at": now,
		},
	}
	if _, err := s.sessions.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return sessionstore.Session{}, err
	}

	out, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return sessionstore.Session{}, err
	}
	if out.Status == sessionstore.StatusEnded {
		return sessionstore.Session{}, sessionstore.ErrSessionEnded
	}
	return out, nil
}

func (s *Store) LoadSession(ctx context.Context, sessionID string) (sessionstore.Session, error) {
	if sessionID == "" {
		return sessionstore.Session{}, errors.New("mongostore: session id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc sessionDocument
	if err := s.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return sessionstore.Session{}, sessionstore.ErrSessionNotFound
		}
		return sessionstore.Session{}, err
	}
	return doc.toSession(), nil
}

func (s *Store) EndSession(ctx context.Context, sessionID string, endedAt time.Time) (sessionstore.Session, error) {
	if sessionID == "" {
		return sessionstore.Session{}, errors.New("mongostore: session id is required")
	}
	if endedAt.IsZero() {
		return sessionstore.Session{}, errors.New("mongostore: ended_at is required")
	}

	existing, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return sessionstore.Session{}, err
	}
	if existing.Status == sessionstore.StatusEnded {
		return existing, nil
	}

	now := time.Now().UTC()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":     sessionstore.StatusEnded,
		"ended_at":   endedAt.UTC(),
		"updated_at": now,
	}}
	if _, err := s.sessions.UpdateOne(ctx, bson.M{"session_id": sessionID}, update); err != nil {
		return sessionstore.Session{}, err
	}
	return s.LoadSession(ctx, sessionID)
}

func (s *Store) UpsertRun(ctx context.Context, run sessionstore.RunMeta) error {
	if run.RunID == "" {
		return errors.New("mongostore: run id is required")
	}
	if run.AgentID == "" {
		return errors.New("mongostore: agent id is required")
	}
	if run.SessionID == "" {
		return errors.New("mongostore: session id is required")
	}
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	run.UpdatedAt = now
	doc := fromRunMeta(run)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"run_id":     doc.RunID,
			"agent_id":   doc.AgentID,
			"session_id": doc.SessionID,
			"status":     doc.Status,
			"updated_at": doc.UpdatedAt,
			"labels":     doc.Labels,
			"metadata":   doc.Metadata,
		},
		"$setOnInsert": bson.M{"started_at": doc.StartedAt},
	}
	_, err := s.runs.UpdateOne(ctx, bson.M{"run_id": run.RunID}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (s *Store) LoadRun(ctx context.Context, runID string) (sessionstore.RunMeta, error) {
	if runID == "" {
		return sessionstore.RunMeta{}, errors.New("mongostore: run id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc runDocument
	if err := s.runs.FindOne(ctx, bson.M{"run_id": runID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return sessionstore.RunMeta{}, sessionstore.ErrRunNotFound
		}
		return sessionstore.RunMeta{}, err
	}
	return doc.toRunMeta(), nil
}

func (s *Store) ListRunsBySession(ctx context.Context, sessionID string, statuses []sessionstore.RunStatus) ([]sessionstore.RunMeta, error) {
	if sessionID == "" {
		return nil, errors.New("mongostore: session id is required")
	}
	filter := bson.M{"session_id": sessionID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.runs.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []sessionstore.RunMeta
	for cur.Next(ctx) {
		var doc runDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toRunMeta())
	}
	return out, cur.Err()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type runDocument struct {
	RunID     string                    `bson:"run_id"`
	AgentID   string                    `bson:"agent_id"`
	SessionID string                    `bson:"session_id,omitempty"`
	Status    sessionstore.RunStatus    `bson:"status"`
	StartedAt time.Time                 `bson:"started_at"`
	UpdatedAt time.Time                 `bson:"updated_at"`
	Labels    map[string]string         `bson:"labels,omitempty"`
	Metadata  map[string]any            `bson:"metadata,omitempty"`
}

type sessionDocument struct {
	SessionID string                    `bson:"session_id"`
	Status    sessionstore.SessionStatus `bson:"status"`
	CreatedAt time.Time                 `bson:"created_at"`
	EndedAt   *time.Time                `bson:"ended_at,omitempty"`
	UpdatedAt time.Time                 `bson:"updated_at"`
}

func fromRunMeta(run sessionstore.RunMeta) runDocument {
	return runDocument{
		RunID:     run.RunID,
		AgentID:   run.AgentID,
		SessionID: run.SessionID,
		Status:    run.Status,
		StartedAt: run.StartedAt.UTC(),
		UpdatedAt: run.UpdatedAt.UTC(),
		Labels:    run.Labels,
		Metadata:  run.Metadata,
	}
}

func (doc runDocument) toRunMeta() sessionstore.RunMeta {
	return sessionstore.RunMeta{
		RunID:     doc.RunID,
		AgentID:   doc.AgentID,
		SessionID: doc.SessionID,
		Status:    doc.Status,
		StartedAt: doc.StartedAt,
		UpdatedAt: doc.UpdatedAt,
		Labels:    doc.Labels,
		Metadata:  doc.Metadata,
	}
}

func (doc sessionDocument) toSession() sessionstore.Session {
	var endedAt *time.Time
	if doc.EndedAt != nil {
		at := doc.EndedAt.UTC()
		endedAt = &at
	}
	return sessionstore.Session{
		ID:        doc.SessionID,
		Status:    doc.Status,
		CreatedAt: doc.CreatedAt.UTC(),
		EndedAt:   endedAt,
	}
}

func ensureIndexes(ctx context.Context, sessionsColl, runsColl *mongodriver.Collection) error {
	sessionIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := sessionsColl.Indexes().CreateOne(ctx, sessionIndex); err != nil {
		return err
	}
	runIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := runsColl.Indexes().CreateOne(ctx, runIndex); err != nil {
		return err
	}
	runSessionStatusIndex := mongodriver.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "status", Value: 1}},
	}
	_, err := runsColl.Indexes().CreateOne(ctx, runSessionStatusIndex)
	return err
}
