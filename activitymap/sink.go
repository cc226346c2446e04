package activitymap

import (
	"context"

	"github.com/goliatone/go-print"
	auth "github.com/marketsim/portal-auth"
)

// LogSink returns an ActivitySink writing normalized records to logger
func LogSink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		record := Normalize(event, opts...)
		logger.Info("activity",
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object_id", record.ObjectID,
			"metadata", print.MaybePrettyJSON(record.Metadata),
		)
		return nil
	})
}
