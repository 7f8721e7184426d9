package netns

import (
	"errors"
	"testing"
)

func TestFakeProvider_OpenSucceeds(t *testing.T) {
	p := NewFakeProvider()
	h, err := p.Open("c1", 1234)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFakeProvider_GoneContainerReturnsGoneError(t *testing.T) {
	p := NewFakeProvider()
	p.GoneContainerIDs["c1"] = true

	_, err := p.Open("c1", 1234)
	var gone *GoneError
	if !errors.As(err, &gone) {
		t.Fatalf("got %v, want *GoneError", err)
	}
	if gone.ContainerID != "c1" {
		t.Errorf("ContainerID = %q, want c1", gone.ContainerID)
	}
}
