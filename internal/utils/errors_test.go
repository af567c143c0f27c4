package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeConflict, "names disagree").Build()

	if err.Error() != "CONFLICT: names disagree" {
		t.Errorf("Unexpected error string: %s", err.Error())
	}
}

func TestAppError_Context(t *testing.T) {
	err := NewAppError(ErrCodeAmbiguousName, "duplicate children").
		WithContext("path", "alice/trip").
		WithContext("matches", 2).
		Build()

	if err.Context["path"] != "alice/trip" {
		t.Errorf("Expected path context, got %v", err.Context["path"])
	}
	if err.Context["matches"] != 2 {
		t.Errorf("Expected matches context, got %v", err.Context["matches"])
	}
}

func TestCodeOf(t *testing.T) {
	appErr := NewAppError(ErrCodeNodeMissing, "no such collection").Build()

	if CodeOf(appErr) != ErrCodeNodeMissing {
		t.Errorf("CodeOf() = %s, want %s", CodeOf(appErr), ErrCodeNodeMissing)
	}

	wrapped := fmt.Errorf("resolving: %w", appErr)
	if CodeOf(wrapped) != ErrCodeNodeMissing {
		t.Error("CodeOf() should unwrap errors")
	}

	if CodeOf(errors.New("plain")) != ErrCodeUnknown {
		t.Error("CodeOf() should return UNKNOWN for plain errors")
	}
}

func TestHasCode(t *testing.T) {
	err := NewAppError(ErrCodeStorageRefused, "folder not empty").Build()

	if !HasCode(err, ErrCodeStorageRefused) {
		t.Error("HasCode() should match the carried code")
	}
	if HasCode(err, ErrCodeConflict) {
		t.Error("HasCode() should not match other codes")
	}
	if HasCode(nil, ErrCodeConflict) {
		t.Error("HasCode() should be false for nil")
	}
}

func TestGetExitCode(t *testing.T) {
	cases := map[string]int{
		ErrCodeConfigInvalid:  ExitConfigInvalid,
		ErrCodeConflict:       ExitConflict,
		ErrCodeAmbiguousName:  ExitAmbiguousName,
		ErrCodeNodeMissing:    ExitNodeMissing,
		ErrCodeNetworkError:   ExitNetworkError,
		ErrCodeStorageRefused: ExitStorageRefused,
		ErrCodeUnknown:        ExitUnknown,
		"SOMETHING_ELSE":      ExitUnknown,
	}

	for code, want := range cases {
		if got := GetExitCode(code); got != want {
			t.Errorf("GetExitCode(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestIsSetupFilename(t *testing.T) {
	if !IsSetupFilename("setup.yaml") || !IsSetupFilename("setup.yml") {
		t.Error("Recognized setup filenames should match")
	}
	if IsSetupFilename("setup.json") || IsSetupFilename("photo.jpg") {
		t.Error("Other filenames should not match")
	}
}

func TestMimeTypeFor(t *testing.T) {
	if MimeTypeFor("cat.JPG") != "image/jpeg" {
		t.Errorf("Extension match should be case-insensitive, got %s", MimeTypeFor("cat.JPG"))
	}
	if MimeTypeFor("notes.txt") != "application/octet-stream" {
		t.Error("Unknown extensions should fall back to octet-stream")
	}
}
