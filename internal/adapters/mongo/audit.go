package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/CharlesNJoroge8822/space-bookings/internal/domain"
	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
)

// AuditLogger keeps a trail of reservation attempt milestones, including the
// refund-required flag written when a confirmed payment loses the commit race.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	AttemptID uuid.UUID `bson:"attempt_id"`
	SpaceID   uuid.UUID `bson:"space_id"`
	UserID    uuid.UUID `bson:"user_id"`
	BookingID uuid.UUID `bson:"booking_id"`
	State     string    `bson:"state"`
	Reason    string    `bson:"reason"`
	Note      string    `bson:"note"`
	Timestamp time.Time `bson:"timestamp"`
}

func (a *AuditLogger) LogAttempt(ctx context.Context, attempt *domain.ReservationAttempt, note string) error {
	doc := AuditLog{
		ID:        uuid.New(),
		AttemptID: attempt.ID,
		SpaceID:   attempt.SpaceID,
		UserID:    attempt.UserID,
		BookingID: attempt.BookingID,
		State:     string(attempt.State),
		Reason:    string(attempt.Reason),
		Note:      note,
		Timestamp: time.Now().UTC(),
	}
	_, err := a.coll.InsertOne(ctx, doc)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

// FindRefundsRequired lists audit entries flagged for manual refund.
func (a *AuditLogger) FindRefundsRequired(ctx context.Context) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"note": bson.M{"$regex": "^refund required"}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []AuditLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
