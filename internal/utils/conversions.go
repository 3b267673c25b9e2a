package utils

// ToMessageSlice collects the human readable text from a slice of validation
// items. Each item is either a string or an object carrying "msg" or "message".
func ToMessageSlice(slice []any) []string {
	messages := make([]string, 0)
	for _, v := range slice {
		switch item := v.(type) {
		case string:
			messages = append(messages, item)
		case map[string]any:
			if msg, ok := item["msg"].(string); ok && msg != "" {
				messages = append(messages, msg)
			} else if msg, ok := item["message"].(string); ok && msg != "" {
				messages = append(messages, msg)
			} else {
				messages = append(messages, "Validation error")
			}
		}
	}
	return messages
}
