package cron

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

func cronActor() *outbox.ActorRef {
	return outbox.SystemActor("cron")
}
