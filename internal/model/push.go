package model

// NotificationContent is the human-visible payload handed to a push path.
// Data carries routing metadata so a tap can resolve back to the right
// conversation without re-querying the backend.
type NotificationContent struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}
