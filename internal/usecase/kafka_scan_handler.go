package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"FinScore/internal/domain/models"
	domrepo "FinScore/internal/domain/repository"
	pkgkafka "FinScore/pkg/kafka"
	applogger "FinScore/pkg/logger"
)

// KafkaScanHandler runs scans requested over Kafka. Results leave through the
// scanner's publisher.
type KafkaScanHandler struct {
	topic    string
	scanner  *Scanner
	params   models.Params
	validate *validator.Validate
	metrics  domrepo.Metrics
	log      *applogger.Logger
}

func NewKafkaScanHandler(topic string, scanner *Scanner, params models.Params, metrics domrepo.Metrics, log *applogger.Logger) *KafkaScanHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &KafkaScanHandler{
		topic:    topic,
		scanner:  scanner,
		params:   params,
		validate: validator.New(),
		metrics:  metrics,
		log:      log,
	}
}

func (h *KafkaScanHandler) Topic() string { return h.topic }

// incoming message schema: {symbols, min_score, concurrency, timeframe, bars, end, params}
func (h *KafkaScanHandler) Handle(ctx context.Context, b []byte) error {
	var body models.ScanRequestBody
	if err := json.Unmarshal(b, &body); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode scan request: %w", err)
	}
	if err := defaults.Set(&body); err != nil {
		return fmt.Errorf("scan request defaults: %w", err)
	}
	if err := h.validate.Struct(body); err != nil {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("%w: %v", models.ErrInvalidParameters, err)
	}

	req, err := ScanRequestFromBody(body, h.params)
	if err != nil {
		h.metrics.RecordError("consumer_validate")
		return err
	}
	res, err := h.scanner.Scan(ctx, req)
	if err != nil {
		h.metrics.RecordError("consumer_scan")
		return err
	}
	h.log.Info("kafka scan completed",
		applogger.String("scan_id", res.ID),
		applogger.Int("requested", res.Requested),
		applogger.Int("ranked", len(res.Ranking)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaScanHandler)(nil)
