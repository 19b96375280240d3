package config

import (
	"errors"
	"testing"

	"github.com/centinelalabs/centinela/pkg/recognizer"
	"github.com/centinelalabs/centinela/pkg/recognizer/mock"
)

func TestRegistry_RegisterAndCreate(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("fake", func(cfg RecognizerConfig) (recognizer.Provider, error) {
		return &mock.Provider{}, nil
	})

	p, err := r.Create(RecognizerConfig{Name: "fake"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p == nil {
		t.Fatal("Create returned nil provider")
	}
}

func TestRegistry_UnknownName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Create(RecognizerConfig{Name: "missing"})
	if !errors.Is(err, ErrRecognizerNotRegistered) {
		t.Errorf("err = %v, want ErrRecognizerNotRegistered", err)
	}
}

func TestRegistry_OverwriteAndNames(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	calls := 0
	r.Register("fake", func(RecognizerConfig) (recognizer.Provider, error) {
		calls++
		return &mock.Provider{}, nil
	})
	r.Register("fake", func(RecognizerConfig) (recognizer.Provider, error) {
		return nil, errors.New("replaced")
	})

	if _, err := r.Create(RecognizerConfig{Name: "fake"}); err == nil {
		t.Error("overwritten factory not used")
	}
	if calls != 0 {
		t.Error("replaced factory was invoked")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "fake" {
		t.Errorf("Names = %v", names)
	}
}
