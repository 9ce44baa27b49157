package progress

import "strings"

type rawProgressFormatter struct{}

func (sf *rawProgressFormatter) formatStatus(id, status string) []byte {
	return []byte(join(id, status) + "\n")
}

func (sf *rawProgressFormatter) formatProgress(id, action string, progress *JSONProgress, last bool) []byte {
	line := join(id, action)
	if counts := progress.String(); counts != "" {
		line += " (" + counts + ")"
	}
	return []byte(line + "\n")
}

func join(id, text string) string {
	if id == "" {
		return text
	}
	return strings.TrimSpace(id + ": " + text)
}
