package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/cosconsole/internal/media"
	"github.com/cosconsole/internal/model"
)

type fakeProvider struct {
	objects   map[string][]byte
	types     map[string]string
	failOn    map[string]error
	lastLimit int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		objects: map[string][]byte{},
		types:   map[string]string{},
		failOn:  map[string]error{},
	}
}

func (f *fakeProvider) List(_ context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	if err := f.failOn["list"]; err != nil {
		return nil, err
	}
	f.lastLimit = maxKeys
	var out []ObjectInfo
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v)), ETag: "etag-" + k, LastModified: "2024-01-02T03:04:05.000Z"})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeProvider) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := f.failOn["put"]; err != nil {
		return "", err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", errors.New("size mismatch")
	}
	f.objects[key] = data
	f.types[key] = contentType
	return "etag-" + key, nil
}

func (f *fakeProvider) Delete(_ context.Context, key string) error {
	if err := f.failOn["delete"]; err != nil {
		return err
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeProvider) Copy(_ context.Context, destKey, sourceKey string) error {
	if err := f.failOn["copy"]; err != nil {
		return err
	}
	data, ok := f.objects[sourceKey]
	if !ok {
		return ErrObjectNotFound
	}
	f.objects[destKey] = data
	return nil
}

type staticSettings struct {
	s   model.Settings
	err error
}

func (s staticSettings) Read(context.Context) (*model.Settings, error) {
	cp := s.s
	return &cp, s.err
}

func configured() model.Settings {
	return model.Settings{
		IsInitialized: true,
		COS: model.COSConfig{
			SecretID: "AKID123", SecretKey: "key456",
			Bucket: "images-1250000000", Region: "ap-shanghai",
		},
	}
}

func newLibrary(p *fakeProvider, s model.Settings) *Library {
	return NewLibrary(staticSettings{s: s}, func(model.COSConfig) (Provider, error) { return p, nil })
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestListImages(t *testing.T) {
	p := newFakeProvider()
	p.objects["a.png"] = []byte("1234")
	p.objects["b.txt"] = []byte("x")
	p.objects["photos/c.JPG"] = []byte("12")
	lib := newLibrary(p, configured())

	images, err := lib.ListImages(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 2 {
		t.Fatalf("got %d images, want 2: %+v", len(images), images)
	}
	if p.lastLimit != DefaultMaxKeys {
		t.Errorf("maxKeys = %d, want default %d", p.lastLimit, DefaultMaxKeys)
	}

	first := images[0]
	wantURL := "https://images-1250000000.cos.ap-shanghai.myqcloud.com/a.png"
	if first.Key != "a.png" || first.URL != wantURL || first.Size != 4 || first.ETag != "etag-a.png" {
		t.Errorf("unexpected image: %+v", first)
	}
	if first.ThumbnailURL != ThumbnailURL(wantURL, DefaultThumbnailSize) {
		t.Errorf("thumbnail = %q", first.ThumbnailURL)
	}

	images, _ = lib.ListImages(context.Background(), "photos/", 10)
	if len(images) != 1 || p.lastLimit != 10 {
		t.Errorf("prefix listing returned %d images with limit %d", len(images), p.lastLimit)
	}
}

func TestListImagesCustomDomain(t *testing.T) {
	p := newFakeProvider()
	p.objects["a.png"] = []byte("1")
	s := configured()
	s.UseCustomDomain = true
	s.CustomDomain = "img.example.com"

	images, err := newLibrary(p, s).ListImages(context.Background(), "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if images[0].URL != "https://img.example.com/a.png" {
		t.Errorf("url = %q", images[0].URL)
	}
}

func TestIncompleteCredentials(t *testing.T) {
	s := configured()
	s.COS.SecretKey = ""
	lib := newLibrary(newFakeProvider(), s)
	ctx := context.Background()

	if _, err := lib.ListImages(ctx, "", 0); !errors.Is(err, ErrIncompleteCredentials) {
		t.Errorf("ListImages: %v", err)
	}
	if err := lib.Delete(ctx, "a.png"); !errors.Is(err, ErrIncompleteCredentials) {
		t.Errorf("Delete: %v", err)
	}
	if _, err := lib.Upload(ctx, "a.png", pngBytes(t)); !errors.Is(err, ErrIncompleteCredentials) {
		t.Errorf("Upload: %v", err)
	}
}

func TestSettingsReadError(t *testing.T) {
	readErr := errors.New("corrupt")
	lib := NewLibrary(staticSettings{s: *model.DefaultSettings(), err: readErr}, nil)
	if _, err := lib.ListImages(context.Background(), "", 0); !errors.Is(err, readErr) {
		t.Errorf("expected settings read error, got %v", err)
	}
}

func TestUpload(t *testing.T) {
	p := newFakeProvider()
	lib := newLibrary(p, configured())

	img, err := lib.Upload(context.Background(), "Holiday.PNG", pngBytes(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(img.Key, ".png") {
		t.Errorf("key %q should keep the png extension", img.Key)
	}
	if _, ok := p.objects[img.Key]; !ok {
		t.Fatal("object not stored")
	}
	if p.types[img.Key] != media.TypePNG {
		t.Errorf("content type = %q", p.types[img.Key])
	}
	if img.ETag != "etag-"+img.Key || img.URL == "" || img.ThumbnailURL == "" {
		t.Errorf("unexpected result: %+v", img)
	}
}

func TestUploadFixesMismatchedExtension(t *testing.T) {
	p := newFakeProvider()
	img, err := newLibrary(p, configured()).Upload(context.Background(), "photo.gif", pngBytes(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(img.Key, ".png") {
		t.Errorf("key %q should use the sniffed type's extension", img.Key)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	p := newFakeProvider()
	_, err := newLibrary(p, configured()).Upload(context.Background(), "notes.png", []byte("just text"))
	if !errors.Is(err, media.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if len(p.objects) != 0 {
		t.Error("non-image reached the bucket")
	}
}

func TestDelete(t *testing.T) {
	p := newFakeProvider()
	p.objects["a.png"] = []byte("1")
	lib := newLibrary(p, configured())

	if err := lib.Delete(context.Background(), "a.png"); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.objects["a.png"]; ok {
		t.Error("object not deleted")
	}

	for _, key := range []string{"", "  ", "/abs.png", "../up.png", "a/./b.png"} {
		if err := lib.Delete(context.Background(), key); err == nil {
			t.Errorf("Delete(%q) should fail", key)
		}
	}
}

func TestRename(t *testing.T) {
	ctx := context.Background()

	t.Run("moves object", func(t *testing.T) {
		p := newFakeProvider()
		p.objects["old.png"] = []byte("data")
		if err := newLibrary(p, configured()).Rename(ctx, "old.png", "new.png"); err != nil {
			t.Fatal(err)
		}
		if _, ok := p.objects["old.png"]; ok {
			t.Error("old key still present")
		}
		if string(p.objects["new.png"]) != "data" {
			t.Error("new key missing data")
		}
	})

	t.Run("same key", func(t *testing.T) {
		p := newFakeProvider()
		p.objects["a.png"] = []byte("data")
		if err := newLibrary(p, configured()).Rename(ctx, "a.png", "a.png"); !errors.Is(err, ErrSameKey) {
			t.Fatalf("expected ErrSameKey, got %v", err)
		}
		if _, ok := p.objects["a.png"]; !ok {
			t.Error("object lost on same-key rename")
		}
	})

	t.Run("missing source", func(t *testing.T) {
		p := newFakeProvider()
		if err := newLibrary(p, configured()).Rename(ctx, "nope.png", "new.png"); !errors.Is(err, ErrObjectNotFound) {
			t.Fatalf("expected ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("copy failure keeps source", func(t *testing.T) {
		p := newFakeProvider()
		p.objects["old.png"] = []byte("data")
		p.failOn["copy"] = errors.New("network")
		if err := newLibrary(p, configured()).Rename(ctx, "old.png", "new.png"); err == nil {
			t.Fatal("expected error")
		}
		if _, ok := p.objects["old.png"]; !ok {
			t.Error("source deleted after failed copy")
		}
	})

	t.Run("empty keys", func(t *testing.T) {
		lib := newLibrary(newFakeProvider(), configured())
		if err := lib.Rename(ctx, "", "b.png"); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("empty old key: %v", err)
		}
		if err := lib.Rename(ctx, "a.png", ""); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("empty new key: %v", err)
		}
	})
}

func TestNewCOS(t *testing.T) {
	if _, err := NewCOS(model.COSConfig{Bucket: "b-125", Region: "ap-shanghai"}); !errors.Is(err, ErrIncompleteCredentials) {
		t.Errorf("expected ErrIncompleteCredentials, got %v", err)
	}
	p, err := NewCOS(configured().COS)
	if err != nil || p == nil {
		t.Errorf("NewCOS with complete config: %v", err)
	}
}
