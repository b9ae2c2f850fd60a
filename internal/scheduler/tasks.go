package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAgentAlert = "leads.agent_alert"

type AgentAlertPayload struct {
	LeadID    string `json:"leadId"`
	AgentID   string `json:"agentId"`
	LeadPhone string `json:"leadPhone"`
	Summary   string `json:"summary"`
}

func NewAgentAlertTask(payload AgentAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAgentAlert, data), nil
}

func ParseAgentAlertPayload(task *asynq.Task) (AgentAlertPayload, error) {
	var payload AgentAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AgentAlertPayload{}, err
	}
	return payload, nil
}
