package queue

import (
	"testing"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/FileShelf/internal/processing"
)

func TestClassifyTaskRoundTrip(t *testing.T) {
	task, err := NewClassifyTask(processing.Job{FileID: "f1", UploaderID: "u1"})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != ClassifyFileTask {
		t.Fatalf("unexpected type %q", task.Type())
	}
	job, err := DecodeClassify(task)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.FileID != "f1" || job.UploaderID != "u1" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestDecodeClassifyRejectsBadPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":     "{",
		"missing file": `{"uploader_id":"u1"}`,
	} {
		if _, err := DecodeClassify(asynq.NewTask(ClassifyFileTask, []byte(payload))); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
