package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestArticleJSONFields(t *testing.T) {
	article := Article{
		ID:          "test-id",
		Title:       "Test Title",
		Summary:     "Test Summary",
		Content:     "<p>Test content</p>",
		ImageURL:    "https://example.com/image.jpg",
		PublishDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Category:    DefaultCategory,
		Author:      DefaultAuthor,
		Tags:        []string{"риба", "ринок"},
	}

	data, err := json.Marshal(article)
	if err != nil {
		t.Fatalf("Failed to marshal Article: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}

	if result["image_url"] != "https://example.com/image.jpg" {
		t.Errorf("Expected image_url field, got %v", result["image_url"])
	}
	if result["publish_date"] != "2024-05-01T10:00:00Z" {
		t.Errorf("Expected publish_date in RFC 3339, got %v", result["publish_date"])
	}
}

func TestArticleFingerprint(t *testing.T) {
	a := Article{ID: "1", Title: "A", Summary: "S", Content: "<p>x</p>", Tags: []string{"a"}}
	b := a
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("equal articles must share a fingerprint")
	}
	b.Content = "<p>y</p>"
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("content change must change the fingerprint")
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory(DefaultCategory) {
		t.Error("default category must be valid")
	}
	if IsCategory("Спорт") {
		t.Error("unexpected category accepted")
	}
}

func TestMembershipTypeValid(t *testing.T) {
	for _, mt := range MembershipTypes {
		if !mt.Valid() {
			t.Errorf("%s should be valid", mt)
		}
	}
	if MembershipType("Gold").Valid() {
		t.Error("Gold should not be valid")
	}
}

func TestPaymentStatusToggled(t *testing.T) {
	if PaymentPaid.Toggled() != PaymentPending {
		t.Error("paid should toggle to pending")
	}
	if PaymentPending.Toggled() != PaymentPaid {
		t.Error("pending should toggle to paid")
	}
}
