// Package scheduler owns the background processing plumbing: the asynq
// client and worker plus the periodic dispatch loops for the fee-request
// outbox and due follow-up tasks.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskExportJob = "exports.job.process"

type ExportJobPayload struct {
	JobID string `json:"jobId"`
}

func NewExportJobTask(payload ExportJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportJob, data), nil
}

func ParseExportJobPayload(task *asynq.Task) (ExportJobPayload, error) {
	var payload ExportJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExportJobPayload{}, err
	}
	return payload, nil
}
