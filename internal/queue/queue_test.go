package queue

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestTaskPayloadRoundTrip(t *testing.T) {
	payload := TaskPayload{
		TaskID:       "task-42",
		UserID:       "user-7",
		Filename:     "disposisi.pdf",
		FileData:     base64.StdEncoding.EncodeToString([]byte("%PDF-1.7")),
		DocumentType: "Surat_Keputusan",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded TaskPayload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != payload {
		t.Errorf("round trip changed payload: %+v", decoded)
	}

	data, err := base64.StdEncoding.DecodeString(decoded.FileData)
	if err != nil {
		t.Fatalf("decode file data: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Errorf("file data = %q", data)
	}
}

func TestRedisJobDefaults(t *testing.T) {
	raw := []byte(`{"id":"j1","type":"document:process","payload":{"task_id":"task-1","filename":"scan.png","file_data":""}}`)

	var job redisJob
	if err := json.Unmarshal(raw, &job); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if job.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", job.Attempts)
	}
	if job.Payload.TaskID != "task-1" {
		t.Errorf("task id = %q", job.Payload.TaskID)
	}
	if job.MaxRetries != 0 {
		t.Errorf("max retries should be unset until the consumer applies the default, got %d", job.MaxRetries)
	}
}
