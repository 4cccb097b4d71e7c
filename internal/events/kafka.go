package events

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/JunAid-JD/aroma-stock-buddy/internal/utils"
)

// KafkaConfig параметры подключения к Kafka (SASL/PLAIN + TLS для Aiven)
type KafkaConfig struct {
	Brokers  string
	Username string
	Password string
	CACert   string
	Topic    string
}

// KafkaPublisher пишет события склада в топик асинхронно
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher создает writer; без брокеров возвращает ошибку
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	brokers := ParseKafkaBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC is empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // события одной сущности в одну партицию
		Transport:    NewKafkaTransport(cfg.Username, cfg.Password, cfg.CACert),
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				utils.LogError("events", "KafkaPublisher", "async write failed", len(messages), err)
			}
		},
	}

	utils.Logger().Infof("📡 Kafka publisher: brokers=%v topic=%s", brokers, cfg.Topic)
	return &KafkaPublisher{writer: writer}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.EntityID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	})
}

// Close дописывает буфер и закрывает writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewKafkaTransport транспорт с SASL/PLAIN и TLS. SASL всегда идет вместе с TLS.
func NewKafkaTransport(username, password, caCert string) *kafka.Transport {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
	}

	if username != "" && password != "" {
		transport.SASL = plain.Mechanism{Username: username, Password: password}
		utils.Logger().Infof("🔐 Kafka: SASL/PLAIN аутентификация включена (username: %s)", username)
	}

	if transport.SASL == nil && caCert == "" {
		return transport
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if caCert != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(caCert)) {
			tlsConfig.RootCAs = pool
			utils.Logger().Info("🔒 Kafka: TLS с CA сертификатом включен")
		} else {
			utils.Logger().Warn("⚠️ Kafka: не удалось распарсить CA сертификат, используем системные сертификаты")
		}
	}
	transport.TLS = tlsConfig
	return transport
}

// ParseKafkaBrokers парсит строку с брокерами (может быть через запятую)
func ParseKafkaBrokers(brokers string) []string {
	var result []string
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
