package model

// ChatResult is the reply of one chat request
type ChatResult struct {
	Reply  string   `json:"reply"`
	Data   any      `json:"data"`
	Images []string `json:"images"`
}
