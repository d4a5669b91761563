package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Forward decodes a LogMessageWire payload and replays it into logger.
// extra attributes (typically the origin module) are appended to the record.
func Forward(ctx context.Context, logger *slog.Logger, payload []byte, extra ...slog.Attr) error {
	var msg LogMessageWire
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode log message: %w", err)
	}

	record := msg.Record()
	handler := logger.Handler()
	if !handler.Enabled(ctx, record.Level) {
		return nil
	}
	record.AddAttrs(extra...)
	return handler.Handle(ctx, record)
}
