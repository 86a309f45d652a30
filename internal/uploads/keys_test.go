package uploads

import (
	"errors"
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey("report.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if !strings.HasPrefix(key, "attachments/") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("key = %q", key)
	}

	other, _ := GenerateKey("report.pdf", "application/pdf")
	if other == key {
		t.Fatal("keys are not unique")
	}
}

func TestGenerateKey_ExtensionMismatch(t *testing.T) {
	if _, err := GenerateKey("photo.png", "image/jpeg"); !errors.Is(err, ErrExtensionMismatch) {
		t.Fatalf("err = %v, want ErrExtensionMismatch", err)
	}
}

func TestGenerateKey_UnsupportedContentType(t *testing.T) {
	if _, err := GenerateKey("movie.mkv", "video/x-matroska"); !errors.Is(err, ErrUnsupportedContentType) {
		t.Fatalf("err = %v, want ErrUnsupportedContentType", err)
	}
}

func TestPolicy_Validate(t *testing.T) {
	p := Policy{MaxFileSize: 1024}

	if err := p.Validate("image/png", 512); err != nil {
		t.Fatalf("valid upload rejected: %v", err)
	}
	if err := p.Validate("image/png", 4096); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	if err := p.Validate("video/x-matroska", 1); !errors.Is(err, ErrUnsupportedContentType) {
		t.Fatalf("err = %v, want ErrUnsupportedContentType", err)
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage("image/png") {
		t.Fatal("image/png not detected as image")
	}
	if IsImage("application/pdf") {
		t.Fatal("application/pdf detected as image")
	}
}
