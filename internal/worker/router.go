package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wishory-lab/aiworkground/internal/provider"
	"github.com/wishory-lab/aiworkground/internal/store"
)

// ErrUnknownTaskType is fatal for an execution attempt. An unknown
// category is not: the type handler absorbs it with a placeholder
// result and no provider traffic.
var ErrUnknownTaskType = errors.New("unknown task type")

// CategoryHandler turns a task's input into a canonical generation,
// dispatching on the task's category.
type CategoryHandler func(ctx context.Context, task *store.Task) (*provider.Generation, error)

// Router is a pure dispatch table from task type to handler. Adding a
// task type means adding an entry here; the executor never changes.
type Router struct {
	handlers map[store.TaskType]CategoryHandler
}

// NewRouter wires the three type handlers to their provider
// capabilities: marketing and design use the text and image generators,
// development uses a separate text generator for reviews.
func NewRouter(text provider.TextGenerator, images provider.ImageGenerator, reviews provider.TextGenerator) *Router {
	return &Router{handlers: map[store.TaskType]CategoryHandler{
		store.TypeMarketing:   marketingHandler(text),
		store.TypeDesign:      designHandler(images),
		store.TypeDevelopment: developmentHandler(reviews),
	}}
}

func (r *Router) Route(t store.TaskType) (CategoryHandler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, t)
	}
	return h, nil
}

func marketingHandler(text provider.TextGenerator) CategoryHandler {
	return func(ctx context.Context, task *store.Task) (*provider.Generation, error) {
		switch task.Category {
		case "blog_post":
			return text.GenerateText(ctx, provider.TextRequest{
				System:    "You are a professional content writer.",
				Prompt:    fmt.Sprintf("Write a blog post about: %s\nDescription: %s", task.Title, task.Description),
				MaxTokens: 2000,
			})
		default:
			return placeholder(provider.KindText, "Marketing task completed"), nil
		}
	}
}

func designHandler(images provider.ImageGenerator) CategoryHandler {
	return func(ctx context.Context, task *store.Task) (*provider.Generation, error) {
		switch task.Category {
		case "logo_design":
			return images.GenerateImage(ctx, provider.ImageRequest{
				Prompt: fmt.Sprintf("Professional logo design for: %s. %s. Clean, modern, minimalist style.", task.Title, task.Description),
			})
		default:
			return placeholder(provider.KindImage, "Design task completed"), nil
		}
	}
}

func developmentHandler(reviews provider.TextGenerator) CategoryHandler {
	return func(ctx context.Context, task *store.Task) (*provider.Generation, error) {
		switch task.Category {
		case "code_review":
			gen, err := reviews.GenerateText(ctx, provider.TextRequest{
				Prompt: fmt.Sprintf(
					"Review this code and provide feedback:\n\n%s\n\nFocus on: security, performance, best practices, and potential bugs.",
					inputField(task.InputData, "code", "No code provided"),
				),
				MaxTokens: 1500,
			})
			if err != nil {
				return nil, err
			}
			if gen.Metadata == nil {
				gen.Metadata = map[string]any{}
			}
			gen.Metadata["review_type"] = "code_review"
			return gen, nil
		default:
			return placeholder(provider.KindText, "Development task completed"), nil
		}
	}
}

// placeholder completes a recognized type with an unrecognized category
// without any provider call.
func placeholder(kind provider.Kind, content string) *provider.Generation {
	return &provider.Generation{
		Kind:         kind,
		Content:      content,
		Metadata:     map[string]any{"placeholder": true},
		QualityScore: provider.DefaultQualityScore,
	}
}

func inputField(input json.RawMessage, key, fallback string) string {
	if len(input) == 0 {
		return fallback
	}
	var m map[string]any
	if err := json.Unmarshal(input, &m); err != nil {
		return fallback
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
