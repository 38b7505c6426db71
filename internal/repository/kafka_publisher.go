package repository

import (
	"context"
	"fmt"
	"time"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	pkgkafka "FinScore/pkg/kafka"
)

// BatchPublisher is the producer surface the publisher needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// ScanSummary is the per-scan message keyed by scan id.
type ScanSummary struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Requested  int             `json:"requested"`
	Ranked     int             `json:"ranked"`
	Failed     int             `json:"failed"`
	MinScore   float64         `json:"min_score"`
	Cancelled  bool            `json:"cancelled"`
	Top        []string        `json:"top"`
	Breadth    *models.Breadth `json:"breadth,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// ScanEntryMessage is the per-symbol message keyed by symbol.
type ScanEntryMessage struct {
	Type   string `json:"type"`
	ScanID string `json:"scan_id"`
	models.ScanEntry
}

const topN = 20

// KafkaScanPublisher writes one summary and one message per entry to a topic.
type KafkaScanPublisher struct {
	producer BatchPublisher
	topic    string
}

var _ domrepo.ResultPublisher = (*KafkaScanPublisher)(nil)

func NewKafkaScanPublisher(producer BatchPublisher, topic string) *KafkaScanPublisher {
	return &KafkaScanPublisher{producer: producer, topic: topic}
}

func (p *KafkaScanPublisher) PublishScan(ctx context.Context, res *models.ScanResult) error {
	if res == nil {
		return nil
	}
	msgs := BuildScanMessages(res)
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish scan %s: %w", res.ID, err)
	}
	return nil
}

func (p *KafkaScanPublisher) Close() error { return p.producer.Close() }

// BuildScanMessages returns the summary followed by entries in result order.
func BuildScanMessages(res *models.ScanResult) []pkgkafka.Message {
	failed := res.Failed()
	sum := ScanSummary{
		Type:       "scan_summary",
		ID:         res.ID,
		Requested:  res.Requested,
		Ranked:     len(res.Ranking),
		Failed:     len(failed),
		MinScore:   res.MinScore,
		Cancelled:  res.Cancelled,
		Breadth:    res.Breadth,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	for i, e := range res.Ranking {
		if i == topN {
			break
		}
		sum.Top = append(sum.Top, e.Symbol)
	}

	msgs := make([]pkgkafka.Message, 0, len(res.Entries)+1)
	msgs = append(msgs, pkgkafka.Message{Key: []byte(res.ID), Value: sum})
	for _, e := range res.Entries {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(e.Symbol),
			Value: ScanEntryMessage{Type: "scan_entry", ScanID: res.ID, ScanEntry: e},
		})
	}
	return msgs
}
