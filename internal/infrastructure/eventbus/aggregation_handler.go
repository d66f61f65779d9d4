package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
)

var taskValidator = validator.New(validator.WithRequiredStructEnabled())

// HandleAggregation wires aggregate-match jobs on the bus to handler.
// Malformed payloads are acknowledged and dropped; commit failures are retried.
func HandleAggregation(bus *Bus, handler usecase.AggregationTaskHandler) {
	bus.Handle(usecase.AggregateMatchJobName, usecase.AggregateMatchJobPath, func(ctx context.Context, payload []byte) error {
		task, err := decodeAggregationTask(payload)
		if err != nil {
			bus.logger.ErrorContext(ctx, "dropping malformed aggregation job", "error", err)
			return nil
		}

		report, err := handler.HandleTask(ctx, task)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, usecase.ErrNotFound):
			bus.logger.WarnContext(ctx, "aggregation job rejected",
				"match_id", task.MatchID,
				"dispatch_id", task.DispatchID,
				"outcome", report.Outcome,
				"error", err,
			)
			return nil
		default:
			return err
		}
	})
}

func decodeAggregationTask(payload []byte) (usecase.AggregationTask, error) {
	var task usecase.AggregationTask
	if err := sonic.Unmarshal(payload, &task); err != nil {
		return usecase.AggregationTask{}, fmt.Errorf("decode aggregation task: %w", err)
	}
	if err := taskValidator.Struct(task); err != nil {
		return usecase.AggregationTask{}, fmt.Errorf("validate aggregation task: %w", err)
	}
	return task, nil
}
