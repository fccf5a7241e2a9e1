package kafka

import (
	"encoding/json"
	"fmt"

	"dealhub/internal/config"
	"dealhub/internal/logger"
	"dealhub/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka.
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создаёт синхронный Kafka producer.
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info("Successfully connected to Kafka")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// publishEvent сериализует событие и отправляет его в топик.
func (p *Producer) publishEvent(topic string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event to topic %s: %w", topic, err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":     topic,
		"type":      event.Type,
		"partition": partition,
		"offset":    offset,
	}).Debug("Event published")

	return nil
}

// PublishDealCreated публикует событие создания предложения.
func (p *Producer) PublishDealCreated(deal *models.Deal) error {
	event := models.NewEvent(models.EventTypeDealCreated, map[string]interface{}{
		"deal_id":     deal.ID,
		"supplier_id": deal.SupplierID,
		"title":       deal.Title,
		"deal_type":   deal.DealType,
	})
	return p.publishEvent(p.topics.Deals, *event)
}

// PublishDealStatusChanged публикует событие смены статуса предложения.
func (p *Producer) PublishDealStatusChanged(dealID uuid.UUID, oldStatus, newStatus models.DealStatus) error {
	event := models.NewEvent(models.EventTypeDealStatusChanged, map[string]interface{}{
		"deal_id":    dealID,
		"old_status": oldStatus,
		"new_status": newStatus,
	})
	return p.publishEvent(p.topics.Deals, *event)
}

// PublishCouponIssued публикует событие выпуска купона.
func (p *Producer) PublishCouponIssued(coupon *models.Coupon) error {
	event := models.NewEvent(models.EventTypeCouponIssued, map[string]interface{}{
		"coupon_id":   coupon.ID,
		"code":        coupon.Code,
		"deal_id":     coupon.DealID,
		"buyer_id":    coupon.BuyerID,
		"issue_price": coupon.IssuePrice,
		"promotional": coupon.Promotional,
	})
	return p.publishEvent(p.topics.Coupons, *event)
}

// PublishCouponRedeemed публикует событие успешного погашения.
func (p *Producer) PublishCouponRedeemed(coupon *models.Coupon, location string) error {
	event := models.NewEvent(models.EventTypeCouponRedeemed, map[string]interface{}{
		"coupon_id": coupon.ID,
		"code":      coupon.Code,
		"deal_id":   coupon.DealID,
		"location":  location,
	})
	return p.publishEvent(p.topics.Redemptions, *event)
}

// PublishRedemptionRejected публикует событие отклонённой попытки погашения.
// Код передаётся строкой: для невалидных кодов купона не существует.
func (p *Producer) PublishRedemptionRejected(code string, outcome models.RedemptionOutcome, reason, location string) error {
	event := models.NewEvent(models.EventTypeRedemptionRejected, map[string]interface{}{
		"code":     code,
		"outcome":  outcome,
		"reason":   reason,
		"location": location,
	})
	return p.publishEvent(p.topics.Redemptions, *event)
}
