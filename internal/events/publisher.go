package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wisefido-readmission/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultPredictionStream stream receiving every stored readmission prediction
const DefaultPredictionStream = "readmission:predictions:stream"

// PredictionEvent stream payload
type PredictionEvent struct {
	PatientID     int64                  `json:"patient_id"`
	MeasurementID int64                  `json:"measurement_id"`
	Parameter     domain.MeasurementType `json:"parameter"`
	Strategy      string                 `json:"strategy"`
	TimeCreated   time.Time              `json:"time_created"`
	Probability   float64                `json:"probability"`
}

// StreamPublisher appends prediction events to a Redis stream (XADD)
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamPublisher maxLen <= 0 leaves the stream untrimmed
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultPredictionStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

// PublishPrediction returns the stream message id
func (p *StreamPublisher) PublishPrediction(ctx context.Context, event PredictionEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal prediction event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"patient_id": strconv.FormatInt(event.PatientID, 10),
			"data":       string(data),
			"timestamp":  strconv.FormatInt(time.Now().Unix(), 10),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}

	p.logger.Debug("Published prediction event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.Int64("patient_id", event.PatientID),
	)
	return id, nil
}
