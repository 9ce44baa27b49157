package progress

import (
	"encoding/json"
	"time"
)

// JSONMessage is one line of JSON progress output.
type JSONMessage struct {
	ID       string        `json:"id,omitempty"`
	Status   string        `json:"status,omitempty"`
	Progress *JSONProgress `json:"progressDetail,omitempty"`
	Last     bool          `json:"last,omitempty"`
	TimeNano int64         `json:"timeNano,omitempty"`
}

// now is replaced in tests.
var now = time.Now

type jsonProgressFormatter struct{}

func (sf *jsonProgressFormatter) formatStatus(id, status string) []byte {
	return sf.encode(JSONMessage{ID: id, Status: status})
}

func (sf *jsonProgressFormatter) formatProgress(id, action string, progress *JSONProgress, last bool) []byte {
	if progress.String() == "" {
		progress = nil
	}
	return sf.encode(JSONMessage{ID: id, Status: action, Progress: progress, Last: last})
}

func (sf *jsonProgressFormatter) encode(msg JSONMessage) []byte {
	msg.TimeNano = now().UnixNano()
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return append(data, '\n')
}
