package avatar

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
)

type fakeUploader struct {
	uploadErr   error
	statuses    []string
	statusErrs  []error
	statusCalls atomic.Int32
	received    string
}

func (f *fakeUploader) UploadAvatar(ctx context.Context, filename string, video io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, _ := io.ReadAll(video)
	f.received = string(data)
	return "av-1", nil
}

func (f *fakeUploader) AvatarStatus(ctx context.Context, avatarID string) (string, error) {
	i := int(f.statusCalls.Add(1)) - 1
	if i < len(f.statusErrs) && f.statusErrs[i] != nil {
		return "", f.statusErrs[i]
	}
	if i < len(f.statuses) {
		return f.statuses[i], nil
	}
	return AvatarStatusProcessing, nil
}

func TestAvatarUploader_ReadyAfterTraining(t *testing.T) {
	fake := &fakeUploader{statuses: []string{AvatarStatusProcessing, AvatarStatusProcessing, AvatarStatusReady}}
	u := NewAvatarUploader(fake, 0, 10, testLogger())

	out, err := u.Upload(context.Background(), "me.mp4", strings.NewReader("clip"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.AvatarID != "av-1" || !out.Ready {
		t.Errorf("outcome = %+v", out)
	}
	if fake.received != "clip" {
		t.Errorf("uploaded %q, want clip", fake.received)
	}
	if n := fake.statusCalls.Load(); n != 3 {
		t.Errorf("status calls = %d, want 3", n)
	}
}

func TestAvatarUploader_StillTrainingReturnsID(t *testing.T) {
	fake := &fakeUploader{}
	out, err := NewAvatarUploader(fake, 0, 4, testLogger()).Upload(context.Background(), "a.mp4", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.AvatarID != "av-1" || out.Ready {
		t.Errorf("outcome = %+v, want id without ready", out)
	}
	if n := fake.statusCalls.Load(); n != 4 {
		t.Errorf("status calls = %d, want 4", n)
	}
}

func TestAvatarUploader_TrainingFailed(t *testing.T) {
	fake := &fakeUploader{statuses: []string{AvatarStatusProcessing, AvatarStatusFailed}}
	_, err := NewAvatarUploader(fake, 0, 10, testLogger()).Upload(context.Background(), "a.mp4", strings.NewReader("x"))

	var failure *AvatarCreationFailure
	if !errors.As(err, &failure) || failure.AvatarID != "av-1" {
		t.Fatalf("expected *AvatarCreationFailure, got %v", err)
	}
}

func TestAvatarUploader_RetriesTransientStatusErrors(t *testing.T) {
	fake := &fakeUploader{
		statusErrs: []error{&APIError{StatusCode: http.StatusServiceUnavailable}, errors.New("connection reset")},
		statuses:   []string{"", "", AvatarStatusReady},
	}
	out, err := NewAvatarUploader(fake, 0, 10, testLogger()).Upload(context.Background(), "a.mp4", strings.NewReader("x"))
	if err != nil || !out.Ready {
		t.Errorf("Upload() = %+v, %v", out, err)
	}
}

func TestAvatarUploader_PermanentStatusErrorFails(t *testing.T) {
	fake := &fakeUploader{statusErrs: []error{&APIError{StatusCode: http.StatusNotFound}}}
	_, err := NewAvatarUploader(fake, 0, 10, testLogger()).Upload(context.Background(), "a.mp4", strings.NewReader("x"))

	var failure *AvatarCreationFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *AvatarCreationFailure, got %v", err)
	}
	if n := fake.statusCalls.Load(); n != 1 {
		t.Errorf("status calls = %d, want 1", n)
	}
}

func TestAvatarUploader_UploadError(t *testing.T) {
	fake := &fakeUploader{uploadErr: &APIError{StatusCode: http.StatusBadRequest, Body: "too short"}}
	_, err := NewAvatarUploader(fake, 0, 10, testLogger()).Upload(context.Background(), "a.mp4", strings.NewReader("x"))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped *APIError, got %v", err)
	}
	if fake.statusCalls.Load() != 0 {
		t.Error("status must not be polled after a failed upload")
	}
}

func TestAvatarUploader_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeUploader{}
	_, err := NewAvatarUploader(fake, DefaultPollInterval, 10, testLogger()).AwaitAvatar(ctx, "av-1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestStubClient_UploadReturnsMockID(t *testing.T) {
	out, err := NewAvatarUploader(NewStubClient(testLogger()), 0, 1, testLogger()).
		Upload(context.Background(), "a.mp4", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.AvatarID, "mock_avatar_") || !out.Ready {
		t.Errorf("outcome = %+v", out)
	}
}
