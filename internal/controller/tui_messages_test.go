package controller

import (
	"strings"
	"testing"
)

func TestBlockItem_FilterValue(t *testing.T) {
	item := blockItem{page: "notes", id: "p_0.2", typ: "p", preview: "hello world"}

	got := item.FilterValue()
	for _, want := range []string{"notes", "p", "hello world"} {
		if !strings.Contains(got, want) {
			t.Fatalf("FilterValue() = %q, missing %q", got, want)
		}
	}
}
