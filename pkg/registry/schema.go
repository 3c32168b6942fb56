// pkg/registry/schema.go
package registry

// ActivityRegistry lists the job types and API bodies the notifier accepts,
// each with the JSON schema its input must satisfy.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version"`
	TaskType     string                 `json:"taskType"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Retries      int                    `json:"retries"`
	Tags         []string               `json:"tags"`
}

// Task types served by the job workers, and API body ids.
const (
	TaskNotifyOrderAssignment = "notify-order-assignment"
	TaskNotifyOrderUpdate     = "notify-order-update"
	TaskNotifyNewOrder        = "notify-new-order"
	BodyPushSubscribe         = "push-subscribe"
)
