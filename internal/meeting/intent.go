package meeting

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Intent is the classified purpose of a user utterance.
type Intent string

const (
	IntentCreateMeeting Intent = "CREATE_MEETING"
	IntentCheckMeeting  Intent = "CHECK_MEETING"
	IntentUpdateMeeting Intent = "UPDATE_MEETING"
	IntentDeleteMeeting Intent = "DELETE_MEETING"
	IntentGeneralQuery  Intent = "GENERAL_QUERY"
	IntentExitTask      Intent = "EXIT_TASK"
	IntentAskInfo       Intent = "ASK_INFO"
)

// ActionError is reported to the caller when extraction fails.
const ActionError = "ERROR"

// TimeLayout is the timestamp format the model is instructed to emit.
const TimeLayout = "2006-01-02 15:04:05"

// CreatePayload carries the parameters of a CREATE_MEETING intent.
type CreatePayload struct {
	Title        string `json:"title"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Participants string `json:"participants"`
}

// CheckPayload carries the parameters of a CHECK_MEETING intent.
type CheckPayload struct {
	Date string `json:"date"`
}

// UpdatePayload carries the parameters of an UPDATE_MEETING intent. The
// model rarely fills OriginalMeetingID; when absent the handler targets the
// most recently created meeting.
type UpdatePayload struct {
	OriginalMeetingID string `json:"original_meeting_id"`
	NewStartTime      string `json:"new_start_time"`
	NewEndTime        string `json:"new_end_time"`
}

// DeletePayload carries the parameters of a DELETE_MEETING intent.
type DeletePayload struct {
	MeetingTitles TitleList `json:"meeting_titles"`
}

// TitleList accepts either a JSON array of strings or a bare string, which
// the model occasionally emits for a single title.
type TitleList []string

func (t *TitleList) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "\"") {
		var single string
		if err := json.Unmarshal(b, &single); err != nil {
			return err
		}
		*t = TitleList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*t = TitleList(list)
	return nil
}

// IntentResult is the structured outcome of one extraction. Exactly one of
// the payload fields matching Intent is set; the rest stay nil.
type IntentResult struct {
	Intent       Intent
	ResponseText string

	Create *CreatePayload
	Check  *CheckPayload
	Update *UpdatePayload
	Delete *DeletePayload
}

// envelope is the wire contract with the model.
type envelope struct {
	ThoughtProcess string          `json:"thought_process"`
	Intent         string          `json:"intent"`
	ResponseText   string          `json:"response_text"`
	ActionPayload  json.RawMessage `json:"action_payload"`
}

// parseIntentResult decodes a raw model reply into an IntentResult. The
// reply may be wrapped in markdown fences or surrounded by stray prose; only
// the span between the first '{' and the last '}' is decoded.
func parseIntentResult(raw string) (*IntentResult, error) {
	cleaned := extractJSONObject(raw)

	var env envelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, newError(ErrorMalformedOutput, "decode_envelope", err)
	}

	res := &IntentResult{
		Intent:       Intent(env.Intent),
		ResponseText: env.ResponseText,
	}

	if len(env.ActionPayload) == 0 {
		return res, nil
	}

	var err error
	switch res.Intent {
	case IntentCreateMeeting:
		res.Create = &CreatePayload{}
		err = json.Unmarshal(env.ActionPayload, res.Create)
	case IntentCheckMeeting:
		res.Check = &CheckPayload{}
		err = json.Unmarshal(env.ActionPayload, res.Check)
	case IntentUpdateMeeting:
		res.Update = &UpdatePayload{}
		err = json.Unmarshal(env.ActionPayload, res.Update)
	case IntentDeleteMeeting:
		res.Delete = &DeletePayload{}
		err = json.Unmarshal(env.ActionPayload, res.Delete)
	}
	if err != nil {
		return nil, newError(ErrorMalformedOutput, fmt.Sprintf("decode_%s_payload", strings.ToLower(env.Intent)), err)
	}
	return res, nil
}

// extractJSONObject strips markdown code fences and cuts the reply down to
// the outermost JSON object.
func extractJSONObject(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end != -1 && end > start {
		s = s[start : end+1]
	}
	return s
}
