package draft

import (
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rybaukrainy/portal/internal/apperr"
	"github.com/rybaukrainy/portal/internal/models"
)

func TestFormatTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a, , b,b", []string{"a", "b"}},
		{"", []string{}},
		{" , ,", []string{}},
		{"риба,  ринок ,риба", []string{"риба", "ринок"}},
		{"one", []string{"one"}},
	}
	for _, tt := range tests {
		if got := FormatTags(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FormatTags(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestCreateEmpty(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	d := CreateEmpty(now)
	if d.Category != models.DefaultCategory || d.Author != models.DefaultAuthor {
		t.Errorf("defaults = %q/%q", d.Category, d.Author)
	}
	if d.PublishDate != "2024-06-15" || d.Content != "" || d.ID != "" {
		t.Errorf("draft = %+v", d)
	}
}

func TestMutate(t *testing.T) {
	d := CreateEmpty(time.Now())
	if err := d.Mutate(FieldTitle, "Заголовок"); err != nil {
		t.Fatal(err)
	}
	if err := d.Mutate(FieldTags, "a, b, a"); err != nil {
		t.Fatal(err)
	}
	if d.Title != "Заголовок" || !reflect.DeepEqual(d.Tags, []string{"a", "b"}) {
		t.Errorf("draft = %+v", d)
	}
	if err := d.Mutate("bogus", "x"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Mutate(bogus) error = %v", err)
	}
}

func TestSerializeForSaveIsIdempotent(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 30, 12, 345, time.UTC)
	d := CreateEmpty(now)
	d.Title = "T"
	d.Summary = "S"
	d.Content = "<p>C</p>"
	d.Category = "Немає такої"
	d.Author = " "
	d.PublishDate = "not a date"

	first := d.SerializeForSave(now)
	second := d.SerializeForSave(now.Add(time.Hour))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("SerializeForSave not idempotent:\n%+v\n%+v", first, second)
	}
	if first.ID == "" {
		t.Error("id should be generated")
	}
	if first.Category != models.DefaultCategory || first.Author != models.DefaultAuthor {
		t.Errorf("fallbacks = %q/%q", first.Category, first.Author)
	}
	if !first.PublishDate.Equal(now.Truncate(time.Second)) {
		t.Errorf("unparseable date should become now, got %v", first.PublishDate)
	}
}

func TestSerializeForSaveKeepsDateAndID(t *testing.T) {
	d := CreateEmpty(time.Now())
	d.ID = "fixed"
	d.PublishDate = "2023-02-01"
	a := d.SerializeForSave(time.Now())
	if a.ID != "fixed" {
		t.Errorf("ID = %q", a.ID)
	}
	if want := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC); !a.PublishDate.Equal(want) {
		t.Errorf("PublishDate = %v, want %v", a.PublishDate, want)
	}
}

func TestValidate(t *testing.T) {
	d := CreateEmpty(time.Now())
	d.Title = "T"
	err := d.Validate()
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Validate() error = %v", err)
	}
	var e *apperr.Error
	e, _ = err.(*apperr.Error)
	if _, ok := e.Fields["summary"]; !ok {
		t.Errorf("fields = %v, want summary", e.Fields)
	}
	if _, ok := e.Fields["title"]; ok {
		t.Errorf("title is set, fields = %v", e.Fields)
	}

	d.Summary, d.Content = "S", "C"
	if err := d.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestFromArticleRoundTrip(t *testing.T) {
	a := models.Article{
		ID: "a1", Title: "T", Summary: "S", Content: "<p>x</p>",
		PublishDate: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Category:    "Ринок", Author: "Іван", Tags: []string{"x"},
	}
	d := FromArticle(a)
	if d.BaseHash != a.Fingerprint() {
		t.Error("BaseHash should be the article fingerprint")
	}
	if got := d.SerializeForSave(time.Now()); got.Fingerprint() != a.Fingerprint() {
		t.Errorf("unchanged draft serializes differently: %+v", got)
	}
}

func newBuffer(t *testing.T) *Buffer {
	t.Helper()
	b, err := OpenBuffer(filepath.Join(t.TempDir(), "scratch.db"))
	if err != nil {
		t.Fatalf("OpenBuffer() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBuffer(t *testing.T) {
	b := newBuffer(t)
	slot := SlotFor("u1")

	if d, err := b.Load(slot); err != nil || d != nil {
		t.Fatalf("Load(empty) = %v, %v", d, err)
	}

	d := CreateEmpty(time.Now())
	d.Title = "Чернетка"
	if err := b.Save(slot, *d); err != nil {
		t.Fatal(err)
	}
	got, err := b.Load(slot)
	if err != nil || got == nil || got.Title != "Чернетка" {
		t.Fatalf("Load() = %+v, %v", got, err)
	}

	LoadExisting(models.Article{ID: "a1"}, b, slot)
	if got, _ := b.Load(slot); got != nil {
		t.Error("LoadExisting should clear the slot")
	}
}

func TestAutosaverFlushesOnStop(t *testing.T) {
	b := newBuffer(t)
	slot := SlotFor("u1")

	var mu sync.Mutex
	d := CreateEmpty(time.Now())
	saver := StartAutosave(b, slot, time.Hour, func() (Draft, bool) {
		mu.Lock()
		defer mu.Unlock()
		return d.Clone(), true
	})

	mu.Lock()
	d.Title = "остання версія"
	mu.Unlock()
	saver.Stop()
	saver.Stop()

	got, err := b.Load(slot)
	if err != nil || got == nil || got.Title != "остання версія" {
		t.Fatalf("Load() after Stop = %+v, %v", got, err)
	}
}

func TestAutosaverTicks(t *testing.T) {
	b := newBuffer(t)
	slot := SlotFor("u2")
	d := CreateEmpty(time.Now())
	d.Title = "tick"
	saver := StartAutosave(b, slot, 10*time.Millisecond, func() (Draft, bool) { return d.Clone(), true })
	defer saver.Discard()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := b.Load(slot); got != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("autosave never wrote the slot")
}

func TestAutosaverDiscardClears(t *testing.T) {
	b := newBuffer(t)
	slot := SlotFor("u3")
	b.Save(slot, Draft{Title: "old"})

	saver := StartAutosave(b, slot, time.Hour, func() (Draft, bool) { return Draft{Title: "new"}, true })
	saver.Discard()
	if got, _ := b.Load(slot); got != nil {
		t.Errorf("slot = %+v after Discard, want empty", got)
	}
}

func TestAutosaverSkipsUnmodified(t *testing.T) {
	b := newBuffer(t)
	slot := SlotFor("u4")

	saver := StartAutosave(b, slot, time.Hour, func() (Draft, bool) { return Draft{Title: "pristine"}, false })
	saver.Stop()
	if got, _ := b.Load(slot); got != nil {
		t.Errorf("slot = %+v, want nothing written for an unmodified draft", got)
	}
}
