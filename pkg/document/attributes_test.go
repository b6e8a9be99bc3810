package document

import (
	"encoding/json"
	"testing"
)

func TestAttributesAccessors(t *testing.T) {
	body := `{
		"type": "books",
		"id": "1",
		"attributes": {
			"title": "The Go Programming Language",
			"pages": 380,
			"rating": 4.6,
			"in_print": true,
			"author": {"name": "Donovan", "coauthor": "Kernighan"},
			"tags": ["go", "reference"]
		}
	}`
	var res Resource
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	attrs := res.Attributes

	if got := attrs.GetString("title"); got != "The Go Programming Language" {
		t.Errorf("GetString(title) = %q", got)
	}
	if got := attrs.GetInt("pages"); got != 380 {
		t.Errorf("GetInt(pages) = %d, want 380", got)
	}
	if got := attrs.GetFloat("rating"); got != 4.6 {
		t.Errorf("GetFloat(rating) = %v, want 4.6", got)
	}
	if !attrs.GetBool("in_print") {
		t.Errorf("GetBool(in_print) = false, want true")
	}
	if got := attrs.GetString("author.name"); got != "Donovan" {
		t.Errorf("GetString(author.name) = %q, want Donovan", got)
	}
	if got := attrs.GetString("tags.1"); got != "reference" {
		t.Errorf("GetString(tags.1) = %q, want reference", got)
	}
	if !attrs.Has("author.coauthor") {
		t.Errorf("Has(author.coauthor) = false, want true")
	}
	if attrs.Has("publisher") {
		t.Errorf("Has(publisher) = true, want false")
	}
	if got := attrs.GetString("publisher"); got != "" {
		t.Errorf("GetString(publisher) = %q, want empty", got)
	}
}

func TestAttributesMarshalRoundTrip(t *testing.T) {
	in := `{"title":"Dune","pages":412}`
	var attrs Attributes
	if err := json.Unmarshal([]byte(in), &attrs); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	out, err := json.Marshal(attrs)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != in {
		t.Errorf("Marshal() = %s, want %s", out, in)
	}

	var empty Attributes
	out, err = json.Marshal(empty)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != "null" {
		t.Errorf("Marshal(empty) = %s, want null", out)
	}
}
