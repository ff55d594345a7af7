package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wishory-lab/aiworkground/internal/provider"
	"github.com/wishory-lab/aiworkground/internal/store"
)

func TestRouteKnownTypes(t *testing.T) {
	r := NewRouter(&fakeTextGen{}, &fakeImageGen{}, &fakeTextGen{})

	for _, taskType := range []store.TaskType{store.TypeMarketing, store.TypeDesign, store.TypeDevelopment} {
		t.Run(string(taskType), func(t *testing.T) {
			h, err := r.Route(taskType)
			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestRouteUnknownType(t *testing.T) {
	r := NewRouter(&fakeTextGen{}, &fakeImageGen{}, &fakeTextGen{})

	h, err := r.Route(store.TaskType("finance"))
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestDevelopmentHandlerForwardsCode(t *testing.T) {
	review := &fakeTextGen{content: "review"}
	r := NewRouter(&fakeTextGen{}, &fakeImageGen{}, review)

	h, err := r.Route(store.TypeDevelopment)
	require.NoError(t, err)

	task := &store.Task{
		Type:      store.TypeDevelopment,
		Category:  "code_review",
		InputData: []byte(`{"code":"package main"}`),
	}
	gen, err := h(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, provider.KindText, gen.Kind)
	assert.Equal(t, "code_review", gen.Metadata["review_type"])
	assert.Equal(t, 1, review.callCount())
}

func TestInputFieldFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty payload", "", "fallback"},
		{"not json", "not-json", "fallback"},
		{"missing key", `{"other":1}`, "fallback"},
		{"wrong type", `{"code":42}`, "fallback"},
		{"present", `{"code":"x := 1"}`, "x := 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inputField([]byte(tt.input), "code", "fallback"))
		})
	}
}
