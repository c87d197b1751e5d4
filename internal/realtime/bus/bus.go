package bus

import (
	"context"

	"github.com/yungbote/studyplan-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, evt realtime.PlanEvent) error
	StartForwarder(ctx context.Context, onEvt func(e realtime.PlanEvent)) error
	Close() error
}
