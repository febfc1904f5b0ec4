package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/intervention-service/internal/config"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

func newStore(t *testing.T, maxBytes int64) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(config.StorageConfig{RootDir: t.TempDir(), PublicBaseURL: "/uploads/", MaxUploadBytes: maxBytes})
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	store.now = func() time.Time { return time.Unix(1700000000, 0) }
	return store
}

func TestSaveAndDelete(t *testing.T) {
	store := newStore(t, 1<<20)
	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32)

	file, err := store.Save(FolderSignatures, "../../firma cliente.png", strings.NewReader(png))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(file.Key, "firmas/1700000000-") || !strings.HasSuffix(file.Key, "-firma_cliente.png") {
		t.Errorf("key = %s", file.Key)
	}
	if file.URL != "/uploads/"+file.Key || file.ContentType != "image/png" || file.Size != int64(len(png)) {
		t.Errorf("file = %+v", file)
	}
	onDisk := filepath.Join(store.root, filepath.FromSlash(file.Key))
	if _, err := os.Stat(onDisk); err != nil {
		t.Fatalf("object missing: %v", err)
	}

	if err := store.Delete(file.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Errorf("object still present: %v", err)
	}
	if err := store.Delete(file.Key); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSaveRejects(t *testing.T) {
	store := newStore(t, 16)
	cases := map[string]string{
		"windows executable": "MZ\x90\x00",
		"elf binary":         "\x7fELF\x02\x01",
		"too large":          strings.Repeat("a", 17),
		"empty":              "",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.Save(FolderAttachments, "x.bin", strings.NewReader(body))
			if !apperrors.IsKind(err, apperrors.KindValidation) {
				t.Errorf("error = %v, expected validation", err)
			}
		})
	}
}

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"informe final.pdf":   "informe_final.pdf",
		`C:\fotos\equipo.jpg`: "equipo.jpg",
		"../../etc/passwd":    "passwd",
		"...":                 "file",
		"señal-óptica_v2.txt": "se_al-_ptica_v2.txt",
	}
	for in, expected := range cases {
		if got := SafeName(in); got != expected {
			t.Errorf("SafeName(%q) = %q, expected %q", in, got, expected)
		}
	}
}

func TestKeyOf(t *testing.T) {
	store := newStore(t, 1<<20)
	tests := []struct {
		url  string
		key  string
		want bool
	}{
		{"/uploads/firmas/1-a-firma.png", "firmas/1-a-firma.png", true},
		{"https://cdn.example.com/firmas/1-a-firma.png", "", false},
		{"/uploads/../etc/passwd", "", false},
		{"/uploads/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			key, ok := store.KeyOf(tt.url)
			if ok != tt.want || key != tt.key {
				t.Errorf("KeyOf(%q) = %q, %v; expected %q, %v", tt.url, key, ok, tt.key, tt.want)
			}
		})
	}
}
