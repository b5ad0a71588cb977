package telegram

import (
	"context"
	"fmt"
	"testing"
)

type stubGotdClient struct {
	runErr error
}

func (c stubGotdClient) Run(ctx context.Context, fn func(runCtx context.Context) error) error {
	if c.runErr != nil {
		return c.runErr
	}
	return fn(ctx)
}

type stubGotdStream struct {
	updates chan any
}

func (s stubGotdStream) Updates(context.Context) (<-chan any, error) {
	return s.updates, nil
}

type stubGotdMapper struct {
	mapFn func(ctx context.Context, raw any) (Update, bool, error)
}

func (m stubGotdMapper) Map(ctx context.Context, raw any) (Update, bool, error) {
	return m.mapFn(ctx, raw)
}

func TestGotdBotSourceConsumeForwardsMappedUpdates(t *testing.T) {
	t.Parallel()

	updates := make(chan any, 2)
	updates <- "mapped"
	updates <- "skipped"
	close(updates)

	mapper := stubGotdMapper{
		mapFn: func(_ context.Context, raw any) (Update, bool, error) {
			if raw == "skipped" {
				return Update{}, false, nil
			}
			return newTestUpdate("tg:message:100:777"), true, nil
		},
	}

	source, err := NewGotdBotSource(stubGotdClient{}, stubGotdStream{updates: updates}, mapper)
	if err != nil {
		t.Fatalf("new source failed: %v", err)
	}

	var handled []Update
	err = source.Consume(context.Background(), func(_ context.Context, update Update) error {
		handled = append(handled, update)
		return nil
	})
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	if len(handled) != 1 {
		t.Fatalf("handled len = %d, want 1", len(handled))
	}
	if handled[0].ID != "tg:message:100:777" {
		t.Fatalf("update id = %s, want tg:message:100:777", handled[0].ID)
	}
}

func TestGotdBotSourceConsumePropagatesMapperErrors(t *testing.T) {
	t.Parallel()

	updates := make(chan any, 1)
	updates <- "broken"
	close(updates)

	mapper := stubGotdMapper{
		mapFn: func(context.Context, any) (Update, bool, error) {
			return Update{}, false, fmt.Errorf("bad raw update")
		},
	}

	source, err := NewGotdBotSource(stubGotdClient{}, stubGotdStream{updates: updates}, mapper)
	if err != nil {
		t.Fatalf("new source failed: %v", err)
	}

	err = source.Consume(context.Background(), func(context.Context, Update) error {
		t.Fatal("handler must not run")
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGotdBotSourceConsumeContainsMapperPanics(t *testing.T) {
	t.Parallel()

	updates := make(chan any, 1)
	updates <- "explosive"
	close(updates)

	mapper := stubGotdMapper{
		mapFn: func(context.Context, any) (Update, bool, error) {
			panic("mapper exploded")
		},
	}

	source, err := NewGotdBotSource(stubGotdClient{}, stubGotdStream{updates: updates}, mapper)
	if err != nil {
		t.Fatalf("new source failed: %v", err)
	}

	err = source.Consume(context.Background(), func(context.Context, Update) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected error from contained panic")
	}
}

func TestNewGotdBotSourceValidation(t *testing.T) {
	t.Parallel()

	mapper := stubGotdMapper{
		mapFn: func(context.Context, any) (Update, bool, error) {
			return Update{}, false, nil
		},
	}

	if _, err := NewGotdBotSource(nil, stubGotdStream{}, mapper); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := NewGotdBotSource(stubGotdClient{}, nil, mapper); err == nil {
		t.Fatal("expected nil stream error")
	}
	if _, err := NewGotdBotSource(stubGotdClient{}, stubGotdStream{}, nil); err == nil {
		t.Fatal("expected nil mapper error")
	}
}
