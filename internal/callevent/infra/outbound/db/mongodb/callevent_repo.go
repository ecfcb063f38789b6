package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/callflow/internal/callevent/domain"
)

// CallEventRepoMongoDB implementa CallEventRepository sobre MongoDB: el
// payload anidado se guarda tal cual como documento, y el índice único
// sobre call_id aporta la misma garantía que en SQL.
type CallEventRepoMongoDB struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewCallEventRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*CallEventRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	coll := client.Database(dbName).Collection("call_events")

	// El índice único es la garantía de exactly-once del almacén; se
	// asegura en el arranque, antes de aceptar tráfico.
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "callId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("could not ensure call_id index: %w", err)
	}

	return &CallEventRepoMongoDB{client: client, coll: coll}, nil
}

// Verificación estática
var _ domain.CallEventRepository = (*CallEventRepoMongoDB)(nil)

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoPayload struct {
	From      string `bson:"from"`
	To        string `bson:"to"`
	Timestamp string `bson:"timestamp"`
	Duration  *int   `bson:"duration,omitempty"`
}

type mongoCallEvent struct {
	ID        uuid.UUID    `bson:"_id"`
	CallID    string       `bson:"callId"`
	EventType string       `bson:"eventType"`
	Payload   mongoPayload `bson:"payload"`
	CreatedAt time.Time    `bson:"createdAt"`
	UpdatedAt time.Time    `bson:"updatedAt"`
}

func toMongoCallEvent(e *domain.CallEvent) mongoCallEvent {
	return mongoCallEvent{
		ID:        e.ID,
		CallID:    e.CallID,
		EventType: string(e.EventType),
		Payload: mongoPayload{
			From:      e.Payload.From,
			To:        e.Payload.To,
			Timestamp: e.Payload.Timestamp,
			Duration:  e.Payload.Duration,
		},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func fromMongoCallEvent(m mongoCallEvent) *domain.CallEvent {
	return &domain.CallEvent{
		ID:        m.ID,
		CallID:    m.CallID,
		EventType: domain.EventType(m.EventType),
		Payload: domain.Payload{
			From:      m.Payload.From,
			To:        m.Payload.To,
			Timestamp: m.Payload.Timestamp,
			Duration:  m.Payload.Duration,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// --- Operaciones ---

func (r *CallEventRepoMongoDB) Create(ctx context.Context, e *domain.CallEvent) error {
	_, err := r.coll.InsertOne(ctx, toMongoCallEvent(e))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrCallEventExists
		}
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *CallEventRepoMongoDB) ExistsByCallID(ctx context.Context, callID string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"callId": callID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo error: %w", err)
	}
	return count > 0, nil
}

func (r *CallEventRepoMongoDB) GetByCallID(ctx context.Context, callID string) (*domain.CallEvent, error) {
	var m mongoCallEvent
	err := r.coll.FindOne(ctx, bson.M{"callId": callID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCallEventNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return fromMongoCallEvent(m), nil
}
