package document

import (
	"strings"
	"testing"

	"github.com/goa-gov/sewa-connect/internal/shared/types"
)

func TestSlugifyLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Aadhaar Card", "aadhaar_card"},
		{"Hospital Record", "hospital_record"},
		{"PAN  (copy)", "pan_copy"},
		{"photo", "photo"},
		{"Proof-of-Address!", "proof_of_address"},
	}
	for _, tt := range tests {
		if got := SlugifyLabel(tt.in); got != tt.want {
			t.Errorf("SlugifyLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestObjectKey(t *testing.T) {
	userID := types.NewID()
	appID := types.NewID()

	key := ObjectKey(userID, appID, "Aadhaar Card", "scan.PDF")
	want := userID.String() + "/" + appID.String() + "/aadhaar_card.pdf"
	if key != want {
		t.Errorf("ObjectKey = %q, want %q", key, want)
	}

	// The first segment is the owner; the policy engine depends on it.
	if !strings.HasPrefix(key, userID.String()+"/") {
		t.Error("object key must start with the owning user id")
	}

	// Extension-less files fall back to .bin.
	key = ObjectKey(userID, appID, "photo", "portrait")
	if !strings.HasSuffix(key, "/photo.bin") {
		t.Errorf("expected .bin fallback, got %q", key)
	}
}
