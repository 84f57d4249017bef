package core

import "testing"

func TestNewObjectTypes(t *testing.T) {
	types := NewObjectTypes(" call ", "email", "", "call", "meeting")
	if len(types) != 3 {
		t.Fatalf("expected deduplicated tags, got %v", types)
	}
	if types.Primary() != "call" || !types.Multi() {
		t.Fatalf("unexpected primary/multi for %v", types)
	}
	if tag, ok := types.Match("EMAIL"); !ok || tag != "email" {
		t.Fatalf("expected case-insensitive match, got %q %v", tag, ok)
	}
	if _, ok := types.Match("note"); ok {
		t.Fatalf("expected no match for undeclared tag")
	}
	if NewObjectTypes("contact").Multi() {
		t.Fatalf("expected single tag collection")
	}
}

func TestCollectionResultFailed(t *testing.T) {
	result := CollectionResult{Collections: []CollectionStatus{
		{Collection: "a", Status: CollectionStatusSucceeded},
		{Collection: "b", Status: CollectionStatusFailed},
	}}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].Collection != "b" {
		t.Fatalf("unexpected failed list %+v", failed)
	}
}
