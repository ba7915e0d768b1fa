package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
)

// Store implements TranscriptStore on MongoDB, for deployments that keep
// the shared room transcript in their own cluster instead of the hosted
// REST backend.
type Store struct {
	segments     *mongo.Collection
	participants *mongo.Collection
	logger       *zap.Logger
}

var _ repositories.TranscriptStore = (*Store)(nil)

type segmentDoc struct {
	ID        string    `bson:"_id"`
	RoomID    string    `bson:"room_id"`
	AuthorID  string    `bson:"author_id,omitempty"`
	Text      string    `bson:"text"`
	FullText  string    `bson:"full_text,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewStore creates the store and kicks off index creation in the
// background, matching how the rest of the codebase treats index setup as
// best effort.
func NewStore(db *mongo.Database, logger *zap.Logger) *Store {
	segments := db.Collection("segments")
	participants := db.Collection("participants")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		roomCursorIndex := mongo.IndexModel{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
		}

		_, err := segments.Indexes().CreateMany(ctx, []mongo.IndexModel{roomCursorIndex})
		if err != nil {
			logger.Error("Failed to create segment indexes", zap.Error(err))
		} else {
			logger.Info("Segment indexes created successfully")
		}
	}()

	return &Store{
		segments:     segments,
		participants: participants,
		logger:       logger,
	}
}

// FetchNew returns segments created after the cursor, oldest first, with
// the excluded author filtered in the query.
func (s *Store) FetchNew(ctx context.Context, roomID string, since time.Time, excludeAuthor string) ([]entities.RemoteSegment, error) {
	filter := bson.M{
		"room_id":    roomID,
		"created_at": bson.M{"$gt": since},
	}
	if excludeAuthor != "" {
		filter["author_id"] = bson.M{"$ne": excludeAuthor}
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})

	cursor, err := s.segments.Find(ctx, filter, opts)
	if err != nil {
		s.logger.Error("Failed to fetch segments", zap.Error(err), zap.String("room_id", roomID))
		return nil, err
	}
	defer cursor.Close(ctx)

	var segments []entities.RemoteSegment
	for cursor.Next(ctx) {
		var doc segmentDoc
		if err := cursor.Decode(&doc); err != nil {
			s.logger.Error("Failed to decode segment", zap.Error(err))
			continue
		}
		segments = append(segments, entities.RemoteSegment{
			ID:        doc.ID,
			RoomID:    doc.RoomID,
			AuthorID:  doc.AuthorID,
			Text:      doc.Text,
			FullText:  doc.FullText,
			CreatedAt: doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		s.logger.Error("Cursor error", zap.Error(err))
		return nil, err
	}

	return segments, nil
}

// FetchLatest returns the newest segment's cumulative text for the room.
func (s *Store) FetchLatest(ctx context.Context, roomID string) (string, error) {
	opts := options.FindOne().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})

	var doc segmentDoc
	err := s.segments.FindOne(ctx, bson.M{"room_id": roomID}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", nil
		}
		s.logger.Error("Failed to fetch latest segment", zap.Error(err), zap.String("room_id", roomID))
		return "", err
	}

	if doc.FullText != "" {
		return doc.FullText, nil
	}
	return doc.Text, nil
}

// Push inserts one segment.
func (s *Store) Push(ctx context.Context, segment entities.RemoteSegment) error {
	doc := segmentDoc{
		ID:        segment.ID,
		RoomID:    segment.RoomID,
		AuthorID:  segment.AuthorID,
		Text:      segment.Text,
		FullText:  segment.FullText,
		CreatedAt: segment.CreatedAt,
	}

	_, err := s.segments.InsertOne(ctx, doc)
	if err != nil {
		s.logger.Error("Failed to push segment", zap.Error(err), zap.String("room_id", segment.RoomID))
		return err
	}

	s.logger.Debug("Segment pushed",
		zap.String("room_id", segment.RoomID),
		zap.String("segment_id", segment.ID))
	return nil
}

// RegisterParticipant upserts the participant document.
func (s *Store) RegisterParticipant(ctx context.Context, participantID string) error {
	filter := bson.M{"_id": participantID}
	update := bson.M{"$set": bson.M{"last_seen_at": time.Now()}}

	_, err := s.participants.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		s.logger.Error("Failed to register participant", zap.Error(err), zap.String("participant_id", participantID))
		return err
	}
	return nil
}
