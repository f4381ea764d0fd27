package testkit

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

// KafkaModule wraps a single-node Kafka testcontainer and its broker addresses.
type KafkaModule struct {
	container testcontainers.Container
	brokers   []string
}

// Brokers returns the bootstrap broker addresses.
func (k *KafkaModule) Brokers() []string { return k.brokers }

// Terminate stops the container.
func (k *KafkaModule) Terminate(ctx context.Context) error {
	if k.container == nil {
		return nil
	}
	return k.container.Terminate(ctx)
}

// StartKafka starts a KRaft Kafka container. If cfg.KafkaBrokers is set, no
// container is started and those brokers are used. It returns nil when Kafka
// is neither given nor requested.
func StartKafka(ctx context.Context, cfg *Config) (*KafkaModule, error) {
	if len(cfg.KafkaBrokers) > 0 {
		return &KafkaModule{brokers: cfg.KafkaBrokers}, nil
	}
	if !cfg.WithKafka {
		return nil, nil
	}

	ctr, err := tckafka.Run(ctx, cfg.KafkaImage, tckafka.WithClusterID("ratefeed-test"))
	if err != nil {
		return nil, fmt.Errorf("start kafka container: %w", err)
	}

	brokers, err := ctr.Brokers(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("get kafka brokers: %w", err)
	}

	return &KafkaModule{
		container: ctr,
		brokers:   brokers,
	}, nil
}
